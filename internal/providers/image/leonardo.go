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

// ErrLeonardoMissingAPIKey indicates the Leonardo client has no credentials.
var ErrLeonardoMissingAPIKey = errors.New("leonardo: api key is required")

// LeonardoOptions configures the Leonardo.ai client.
type LeonardoOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	MaxPolls     int
}

// Leonardo drives the Leonardo.ai generation API: a generation job is
// created, then polled until it completes or fails.
type Leonardo struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	maxPolls     int
}

type leonardoGenerationPayload struct {
	Prompt         string `json:"prompt"`
	ModelID        string `json:"modelId"`
	NumImages      int    `json:"num_images"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	GuidanceScale  int    `json:"guidance_scale"`
	NegativePrompt string `json:"negative_prompt"`
	Public         bool   `json:"public"`
}

type leonardoCreateResponse struct {
	SDGenerationJob struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type leonardoStatusResponse struct {
	GenerationsByPK *struct {
		Status          string `json:"status"`
		GeneratedImages []struct {
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

// NewLeonardo constructs a client with sane defaults.
func NewLeonardo(opts LeonardoOptions) (*Leonardo, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://cloud.leonardo.ai/api/rest/v1"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 30
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Leonardo{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(opts.DefaultModel),
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (l *Leonardo) HasCredentials() bool {
	return l.apiKey != ""
}

// Generate creates a generation job and polls until its images are ready.
func (l *Leonardo) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if !l.HasCredentials() {
		return nil, ErrLeonardoMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("leonardo: prompt is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = l.defaultModel
	}
	negative := req.NegativePrompt
	if negative == "" {
		negative = DefaultNegativePrompt
	}
	payload := leonardoGenerationPayload{
		Prompt:         prompt,
		ModelID:        model,
		NumImages:      req.Quantity,
		Width:          1024,
		Height:         1024,
		GuidanceScale:  7,
		NegativePrompt: negative,
		Public:         false,
	}

	generationID, err := l.createGeneration(ctx, payload)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("generation_id", generationID).Str("model", model).Msg("leonardo: generation job started")

	urls, err := l.awaitGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}

	assets := make([]Asset, 0, len(urls))
	for _, u := range urls {
		data, format, err := download(ctx, l.httpClient, u)
		if err != nil {
			l.logger.Error().Err(err).Str("url", u).Msg("leonardo: failed to download image")
			continue
		}
		assets = append(assets, Asset{URL: u, Data: data, Format: format, Width: 1024, Height: 1024})
	}
	if len(assets) == 0 {
		return nil, errors.New("leonardo: no images could be downloaded")
	}
	return assets, nil
}

func (l *Leonardo) createGeneration(ctx context.Context, payload leonardoGenerationPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("leonardo: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("leonardo: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("leonardo: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("leonardo: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("leonardo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded leonardoCreateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("leonardo: decode response: %w", err)
	}
	if decoded.SDGenerationJob.GenerationID == "" {
		return "", errors.New("leonardo: response missing generation id")
	}
	return decoded.SDGenerationJob.GenerationID, nil
}

// awaitGeneration polls the job until COMPLETE or FAILED, bounded by the
// configured attempt cap.
func (l *Leonardo) awaitGeneration(ctx context.Context, generationID string) ([]string, error) {
	for attempt := 0; attempt < l.maxPolls; attempt++ {
		status, urls, err := l.pollGeneration(ctx, generationID)
		if err != nil {
			return nil, err
		}
		switch status {
		case "COMPLETE":
			if len(urls) == 0 {
				return nil, errors.New("leonardo: generation completed without images")
			}
			return urls, nil
		case "FAILED":
			return nil, errors.New("leonardo: image generation failed")
		}
		select {
		case <-time.After(l.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, errors.New("leonardo: image generation timed out")
}

func (l *Leonardo) pollGeneration(ctx context.Context, generationID string) (string, []string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/generations/"+generationID, nil)
	if err != nil {
		return "", nil, fmt.Errorf("leonardo: build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("leonardo: status request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("leonardo: read status response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("leonardo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded leonardoStatusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", nil, fmt.Errorf("leonardo: decode status response: %w", err)
	}
	if decoded.GenerationsByPK == nil {
		return "", nil, nil
	}
	urls := make([]string, 0, len(decoded.GenerationsByPK.GeneratedImages))
	for _, img := range decoded.GenerationsByPK.GeneratedImages {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return decoded.GenerationsByPK.Status, urls, nil
}

var _ Generator = (*Leonardo)(nil)
