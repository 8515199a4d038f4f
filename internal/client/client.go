// Package client implements the HTTP client for the jewelry generation
// backend: POST /generate-jewelry and GET /get-saved-designs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jewelgen/internal/design"
)

const defaultTimeout = 5 * time.Minute

// APIError carries a server-reported error message alongside the HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: api error (status %d): %s", e.StatusCode, e.Message)
}

// UserMessage returns the server's error text for direct display.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Client talks to the generation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a client for the given base URL. A nil httpClient gets a
// default with a generous timeout, since generation can take minutes.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Generate submits the design request and decodes the image list. Non-2xx
// responses with an "error" field become an *APIError.
func (c *Client) Generate(ctx context.Context, req design.Request) (*design.GenerateResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-jewelry", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	var result design.GenerateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	return &result, nil
}

// SavedDesigns fetches the saved-design records and passes them through
// verbatim, without shape validation.
func (c *Client) SavedDesigns(ctx context.Context) ([]json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get-saved-designs", nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: saved designs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	return items, nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: ""}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
}

var _ design.Backend = (*Client)(nil)
