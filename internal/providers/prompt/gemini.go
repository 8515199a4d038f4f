package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jewelgen/internal/infra"
)

const (
	geminiDefaultTimeout = 15 * time.Second

	geminiInstruction = "You are an expert jewelry designer and prompt engineer for AI image generation. " +
		"Take the following user description for a piece of jewelry and expand it into a highly detailed, " +
		"photorealistic prompt suitable for a realistic text-to-image model like Stable Diffusion XL. " +
		"Focus on adding details about:\n" +
		"- Material textures (e.g., polished, brushed, matte, sparkling)\n" +
		"- Lighting (e.g., studio lighting, soft ambient light, dramatic spotlight, reflections)\n" +
		"- Background (e.g., minimalist white, dark velvet, natural wood, blurred bokeh)\n" +
		"- Camera angle/shot (e.g., close-up macro, eye-level, slightly elevated)\n" +
		"- Refinements to the jewelry's design (e.g., intricate filigree, smooth curves, sharp edges, specific stone cuts)\n" +
		"- Overall mood or aesthetic (e.g., luxurious, modern, vintage, delicate, bold). " +
		"Make sure the user's prompt takes preference.\n\n" +
		"Original user description: %q\n\n" +
		"Return ONLY the enhanced prompt string, nothing else. Do not include any conversational text, " +
		"introductions, or conclusions. Just the prompt."
)

// GeminiOptions configures the Gemini prompt enhancer.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Gemini enhances prompts through the generateContent REST endpoint. Any
// failure, including a missing API key, degrades to returning the original
// prompt so image generation can still proceed.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature    float64 `json:"temperature,omitempty"`
	CandidateCount int     `json:"candidateCount,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGemini constructs the enhancer with sane defaults.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: geminiDefaultTimeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Gemini{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether remote enhancement is possible.
func (g *Gemini) HasCredentials() bool {
	return g.apiKey != ""
}

// Enhance asks Gemini to expand the prompt. The original prompt is returned
// whenever the call cannot be made or yields no usable text.
func (g *Gemini) Enhance(ctx context.Context, prompt string) (string, error) {
	if !g.HasCredentials() {
		g.logger.Warn().Msg("gemini: api key not configured, skipping prompt enhancement")
		return prompt, nil
	}
	enhanced, err := g.call(ctx, prompt)
	if err != nil {
		g.logger.Error().Err(err).Msg("gemini: prompt enhancement failed, using original prompt")
		return prompt, nil
	}
	g.logger.Info().Msg("gemini: prompt enhanced")
	return enhanced, nil
}

func (g *Gemini) call(ctx context.Context, prompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf(geminiInstruction, prompt)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:    0.5,
			CandidateCount: 1,
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", errors.New("gemini: response contained no text")
}

var _ Enhancer = (*Gemini)(nil)
