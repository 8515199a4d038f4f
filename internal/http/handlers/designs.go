package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"jewelgen/internal/design"
	"jewelgen/internal/middleware"
	"jewelgen/internal/providers/image"
	"jewelgen/internal/sqlinline"
	"jewelgen/pkg/zip"
)

// The original Leonardo base model was retired; requests still naming it get
// a dedicated error instead of an upstream failure.
const retiredLeonardoModel = "5c232a9e-9061-4777-980a-ddc8e65647c6"

const (
	unauthorizedMessage = "You are not authorized to use this, please contact info@livepointsolutions.com."
	savedDesignsLimit   = 100
)

type generateResponse struct {
	Images []string `json:"images"`
}

type savedDesign struct {
	FolderID string          `json:"folder_id"`
	Prompt   string          `json:"prompt"`
	Images   json.RawMessage `json:"images"`
}

// GenerateJewelry handles POST /generate-jewelry: it gates on the challenge
// passphrase, builds the prompt, optionally enhances it, invokes the selected
// provider, persists the results, and returns the public image paths.
func (a *App) GenerateJewelry(w http.ResponseWriter, r *http.Request) {
	var req design.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}
	a.Logger.Info().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("jewelry_type", req.JewelryType).
		Str("model", req.Model).
		Int("num_images", req.NumImages).
		Msg("received generation request")

	if !a.challengePassed(req.Challenge) {
		event := a.Logger.Warn().Str("challenge", req.Challenge)
		if country := a.clientCountry(r); country != "" {
			event = event.Str("country", country)
		}
		event.Msg("unauthorized access attempt")
		a.error(w, http.StatusForbidden, unauthorizedMessage)
		return
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = design.DefaultModel
	}
	providerName := ProviderLeonardo
	if model == design.DefaultModel {
		providerName = ProviderTogether
	} else if model == retiredLeonardoModel {
		a.error(w, http.StatusBadRequest, "The Leonardo base model is no longer available. Please select another model.")
		return
	}
	generator, ok := a.Generators[providerName]
	if !ok {
		a.error(w, http.StatusInternalServerError, fmt.Sprintf("Provider %s is not configured.", providerName))
		return
	}

	numImages := req.NumImages
	if numImages < design.MinImages || numImages > design.MaxImages {
		a.Logger.Warn().Int("num_images", numImages).Msg("invalid image count, defaulting to 4")
		numImages = 4
	}

	finalPrompt := image.BuildJewelryPrompt(req)
	if req.EnhancePrompt {
		enhanced, err := a.Enhancer.Enhance(r.Context(), finalPrompt)
		if err != nil {
			a.Logger.Error().Err(err).Msg("prompt enhancement failed, using original prompt")
		} else {
			finalPrompt = enhanced
		}
	}
	a.Logger.Info().Bool("enhanced", req.EnhancePrompt).Str("provider", providerName).Msg("final prompt prepared")

	assets, err := generator.Generate(r.Context(), image.GenerateRequest{
		Prompt:         finalPrompt,
		NegativePrompt: image.DefaultNegativePrompt,
		Quantity:       numImages,
		Model:          model,
		RequestID:      middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("provider", providerName).Msg("image generation failed")
		a.error(w, http.StatusBadGateway, err.Error())
		return
	}

	storedPrompt := finalPrompt
	if providerName == ProviderLeonardo {
		storedPrompt = fmt.Sprintf("%s(Model: %s)", finalPrompt, model)
	}
	designID := uuid.NewString()
	paths := a.storeDesign(r.Context(), designID, storedPrompt, assets)
	if len(paths) == 0 {
		a.error(w, http.StatusInternalServerError, "No images were successfully saved.")
		return
	}
	a.recordDesign(r.Context(), designID, req, model, providerName, storedPrompt, paths)

	a.json(w, http.StatusOK, generateResponse{Images: paths})
}

// GetSavedDesigns handles GET /get-saved-designs: the stored design records,
// newest first.
func (a *App) GetSavedDesigns(w http.ResponseWriter, r *http.Request) {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListDesigns, savedDesignsLimit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "Failed to load saved designs.")
		return
	}
	defer rows.Close()

	items := []savedDesign{}
	for rows.Next() {
		var item savedDesign
		var images []byte
		if err := rows.Scan(&item.FolderID, &item.Prompt, &images); err != nil {
			a.Logger.Error().Err(err).Msg("failed to scan saved design row")
			continue
		}
		item.Images = json.RawMessage(images)
		items = append(items, item)
	}
	a.Logger.Info().Int("count", len(items)).Msg("fetched saved designs")
	a.json(w, http.StatusOK, items)
}

// DesignZip handles GET /designs/{id}/zip: the design's prompt and images as
// a downloadable archive.
func (a *App) DesignZip(w http.ResponseWriter, r *http.Request) {
	designID := chi.URLParam(r, "id")
	if designID == "" {
		a.error(w, http.StatusBadRequest, "Design id is required.")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectDesignByID, designID)
	var id, storedPrompt string
	var imagesRaw []byte
	if err := row.Scan(&id, &storedPrompt, &imagesRaw); err != nil {
		a.error(w, http.StatusNotFound, "Design not found.")
		return
	}
	var imagePaths []string
	if err := json.Unmarshal(imagesRaw, &imagePaths); err != nil {
		a.error(w, http.StatusInternalServerError, "Stored design record is corrupt.")
		return
	}

	entries := []zip.Entry{{Filename: "prompt.txt", Data: []byte(storedPrompt)}}
	for _, p := range imagePaths {
		key := a.storageKey(p)
		if key == "" {
			continue
		}
		data, err := a.Store.Read(key)
		if err != nil {
			a.Logger.Error().Err(err).Str("key", key).Msg("failed to read stored image")
			continue
		}
		entries = append(entries, zip.Entry{Filename: path.Base(key), Data: data})
	}

	archive := zip.Archive(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=design-%s.zip", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) challengePassed(challenge string) bool {
	challenge = strings.TrimSpace(challenge)
	return challenge != "" && strings.EqualFold(challenge, a.Config.ChallengePhrase)
}

// storeDesign writes the prompt and the image bytes under the design's
// folder and returns the public asset paths.
func (a *App) storeDesign(ctx context.Context, designID, storedPrompt string, assets []image.Asset) []string {
	if _, err := a.Store.WriteDesignPrompt(ctx, designID, storedPrompt); err != nil {
		a.Logger.Error().Err(err).Str("design_id", designID).Msg("failed to save prompt")
	}
	var paths []string
	for i, asset := range assets {
		key, err := a.Store.WriteDesignImage(ctx, designID, i+1, extensionFor(asset.Format), asset.Data)
		if err != nil {
			a.Logger.Error().Err(err).Str("design_id", designID).Str("url", asset.URL).Msg("failed to save image")
			continue
		}
		paths = append(paths, a.assetURL(key))
	}
	return paths
}

// recordDesign inserts the design record; the images are already on disk, so
// a database failure is logged rather than failing the response.
func (a *App) recordDesign(ctx context.Context, designID string, req design.Request, model, providerName, storedPrompt string, paths []string) {
	imagesJSON, err := json.Marshal(paths)
	if err != nil {
		a.Logger.Error().Err(err).Str("design_id", designID).Msg("failed to encode image paths")
		return
	}
	props, _ := json.Marshal(map[string]any{
		"provider": providerName,
		"enhanced": req.EnhancePrompt,
		"gender":   req.Gender,
	})
	row := a.SQL.QueryRow(ctx, sqlinline.QInsertDesign, designID, req.JewelryType, model, storedPrompt, imagesJSON, props)
	var inserted string
	if err := row.Scan(&inserted); err != nil {
		a.Logger.Error().Err(err).Str("design_id", designID).Msg("failed to record design")
	}
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
