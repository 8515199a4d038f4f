package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultNegativePrompt captures artefacts every provider should avoid.
const DefaultNegativePrompt = "blurry, low quality, deformed, malformed, text, watermark, ugly, poor lighting"

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Quantity       int
	Model          string
	RequestID      string
}

// Asset is a generated image with its bytes downloaded from the provider.
type Asset struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Asset, error)
}

// download fetches the image bytes behind a provider-returned URL.
func download(ctx context.Context, client *http.Client, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("image: invalid asset url: %s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("image: build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image: download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("image: read asset: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}
