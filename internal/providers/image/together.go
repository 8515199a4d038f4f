package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jewelgen/internal/infra"
)

// ErrTogetherMissingAPIKey indicates the Together client has no credentials.
var ErrTogetherMissingAPIKey = errors.New("together: api key is required")

// TogetherMaxImages is the per-request image cap of the Together.ai API.
const TogetherMaxImages = 4

// TogetherOptions configures the Together.ai client.
type TogetherOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Together performs synchronous image generation against the Together.ai
// images endpoint.
type Together struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type togetherGenerationPayload struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	N              int    `json:"n"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NegativePrompt string `json:"negative_prompt"`
	OutputFormat   string `json:"output_format"`
}

type togetherGenerationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewTogether constructs a client with sane defaults.
func NewTogether(opts TogetherOptions) (*Together, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.together.ai/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "black-forest-labs/FLUX.1-dev"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Together{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (t *Together) Model() string {
	return t.model
}

// HasCredentials reports whether the client can perform remote calls.
func (t *Together) HasCredentials() bool {
	return t.apiKey != ""
}

// Generate invokes the Together API once and downloads the returned images.
// Quantities above the API cap are reduced to it.
func (t *Together) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if !t.HasCredentials() {
		return nil, ErrTogetherMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("together: prompt is required")
	}
	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}
	if quantity > TogetherMaxImages {
		t.logger.Warn().Int("requested", quantity).Msgf("together: capping image count at %d", TogetherMaxImages)
		quantity = TogetherMaxImages
	}
	negative := req.NegativePrompt
	if negative == "" {
		negative = DefaultNegativePrompt
	}
	payload := togetherGenerationPayload{
		Prompt:         prompt,
		Model:          t.model,
		N:              quantity,
		Width:          1024,
		Height:         1024,
		NegativePrompt: negative,
		OutputFormat:   "jpeg",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("together: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("together: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("together: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("together: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var decoded togetherGenerationResponse
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error != nil && decoded.Error.Message != "" {
			return nil, fmt.Errorf("together: %s", decoded.Error.Message)
		}
		return nil, fmt.Errorf("together: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded togetherGenerationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("together: decode response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, errors.New("together: response missing image data")
	}

	assets := make([]Asset, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		if item.URL == "" {
			continue
		}
		data, format, err := download(ctx, t.httpClient, item.URL)
		if err != nil {
			t.logger.Error().Err(err).Str("url", item.URL).Msg("together: failed to download image")
			continue
		}
		assets = append(assets, Asset{URL: item.URL, Data: data, Format: format, Width: 1024, Height: 1024})
	}
	if len(assets) == 0 {
		return nil, errors.New("together: no images could be downloaded")
	}
	t.logger.Debug().Int("count", len(assets)).Str("model", t.model).Msg("together: generated image assets")
	return assets, nil
}

var _ Generator = (*Together)(nil)
