package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTogetherGenerateCapsQuantity(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /images/generations", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization header = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["n"] != float64(TogetherMaxImages) {
			t.Fatalf("n = %v, want %d", payload["n"], TogetherMaxImages)
		}
		if payload["model"] != "black-forest-labs/FLUX.1-dev" {
			t.Fatalf("model = %v", payload["model"])
		}
		if payload["output_format"] != "jpeg" {
			t.Fatalf("output_format = %v", payload["output_format"])
		}
		resp := `{"data":[{"url":"` + srv.URL + `/img/1"},{"url":"` + srv.URL + `/img/2"}]}`
		_, _ = w.Write([]byte(resp))
	})
	mux.HandleFunc("GET /img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewTogether(TogetherOptions{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewTogether returned error: %v", err)
	}

	assets, err := client.Generate(context.Background(), GenerateRequest{Prompt: "a ring", Quantity: 8})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("assets = %d, want 2", len(assets))
	}
	if string(assets[0].Data) != "jpeg-bytes" || assets[0].Format != "image/jpeg" {
		t.Fatalf("asset not downloaded: %#v", assets[0])
	}
}

func TestTogetherGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"model is overloaded"}}`))
	}))
	defer srv.Close()

	client, err := NewTogether(TogetherOptions{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewTogether returned error: %v", err)
	}

	_, err = client.Generate(context.Background(), GenerateRequest{Prompt: "a ring", Quantity: 1})
	if err == nil || !strings.Contains(err.Error(), "model is overloaded") {
		t.Fatalf("err = %v, want upstream message", err)
	}
}

func TestTogetherGenerateMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client, err := NewTogether(TogetherOptions{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewTogether returned error: %v", err)
	}

	_, err = client.Generate(context.Background(), GenerateRequest{Prompt: "a ring", Quantity: 1})
	if err == nil || !strings.Contains(err.Error(), "missing image data") {
		t.Fatalf("err = %v, want missing data error", err)
	}
}

func TestTogetherGenerateRequiresAPIKey(t *testing.T) {
	client, err := NewTogether(TogetherOptions{})
	if err != nil {
		t.Fatalf("NewTogether returned error: %v", err)
	}
	if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "a ring"}); err != ErrTogetherMissingAPIKey {
		t.Fatalf("err = %v, want ErrTogetherMissingAPIKey", err)
	}
}
