package handlers

import (
	archivezip "archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"jewelgen/internal/design"
	"jewelgen/internal/infra"
	"jewelgen/internal/providers/image"
	"jewelgen/internal/providers/prompt"
	"jewelgen/internal/storage"
)

type insertedDesign struct {
	id          string
	jewelryType string
	model       string
	prompt      string
	images      []byte
}

type stubSQL struct {
	mu        sync.Mutex
	inserted  []insertedDesign
	listRows  [][]any
	listErr   error
	designRow []any
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %s", query)
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if strings.Contains(query, "from designs") {
		if s.listErr != nil {
			return nil, s.listErr
		}
		return &stubRows{rows: s.listRows}, nil
	}
	return nil, fmt.Errorf("unsupported query: %s", query)
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if strings.Contains(query, "insert into designs") {
		rec := insertedDesign{
			id:          args[0].(string),
			jewelryType: args[1].(string),
			model:       args[2].(string),
			prompt:      args[3].(string),
			images:      append([]byte(nil), args[4].([]byte)...),
		}
		s.mu.Lock()
		s.inserted = append(s.inserted, rec)
		s.mu.Unlock()
		return stubRow{scan: func(dest ...any) error {
			if ptr, ok := dest[0].(*string); ok {
				*ptr = rec.id
				return nil
			}
			return fmt.Errorf("unsupported scan target")
		}}
	}
	if strings.Contains(query, "where id = $1") && s.designRow != nil {
		row := s.designRow
		return stubRow{scan: func(dest ...any) error {
			return (&stubRows{rows: [][]any{row}, idx: 1}).Scan(dest...)
		}}
	}
	return stubRow{}
}

func (s *stubSQL) lastInserted() *insertedDesign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inserted) == 0 {
		return nil
	}
	rec := s.inserted[len(s.inserted)-1]
	return &rec
}

type stubGenerator struct {
	mu     sync.Mutex
	last   image.GenerateRequest
	assets []image.Asset
	err    error
	calls  int
}

func (s *stubGenerator) Generate(ctx context.Context, req image.GenerateRequest) ([]image.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.assets, nil
}

func newTestApp(t *testing.T, sql *stubSQL, generators map[string]image.Generator) *App {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	return &App{
		Config: &infra.Config{
			ChallengePhrase: "i love lp",
			StorageBaseURL:  "/static",
		},
		Logger:     zerolog.Nop(),
		SQL:        sql,
		Store:      store,
		Generators: generators,
		Enhancer:   prompt.NewPassthrough(),
		Styles:     design.DefaultStyleTable(),
	}
}

func TestGenerateJewelry(t *testing.T) {
	pngAssets := []image.Asset{
		{URL: "https://example.com/a.png", Data: []byte("a"), Format: "image/png"},
		{URL: "https://example.com/b.png", Data: []byte("b"), Format: "image/png"},
	}

	testCases := []struct {
		name         string
		body         map[string]any
		generator    *stubGenerator
		wantStatus   int
		wantImages   int
		wantQuantity int
		wantErrorSub string
	}{{
		name: "success with default model",
		body: map[string]any{
			"jewelry_type": "ring",
			"metal_type":   "yellow gold",
			"stone_type":   "diamond",
			"numImages":    2,
			"challenge":    "i love lp",
		},
		generator:    &stubGenerator{assets: pngAssets},
		wantStatus:   http.StatusOK,
		wantImages:   2,
		wantQuantity: 2,
	}, {
		name: "wrong challenge",
		body: map[string]any{
			"jewelry_type": "ring",
			"numImages":    2,
			"challenge":    "open sesame",
		},
		generator:    &stubGenerator{assets: pngAssets},
		wantStatus:   http.StatusForbidden,
		wantErrorSub: "not authorized",
	}, {
		name: "retired leonardo model",
		body: map[string]any{
			"jewelry_type": "ring",
			"numImages":    2,
			"model":        retiredLeonardoModel,
			"challenge":    "i love lp",
		},
		generator:    &stubGenerator{assets: pngAssets},
		wantStatus:   http.StatusBadRequest,
		wantErrorSub: "no longer available",
	}, {
		name: "image count out of range defaults to four",
		body: map[string]any{
			"jewelry_type": "ring",
			"numImages":    20,
			"challenge":    "i love lp",
		},
		generator:    &stubGenerator{assets: pngAssets},
		wantStatus:   http.StatusOK,
		wantImages:   2,
		wantQuantity: 4,
	}, {
		name: "generator failure",
		body: map[string]any{
			"jewelry_type": "ring",
			"numImages":    2,
			"challenge":    "i love lp",
		},
		generator:    &stubGenerator{err: errors.New("together: model is overloaded")},
		wantStatus:   http.StatusBadGateway,
		wantErrorSub: "overloaded",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sqlStub := &stubSQL{}
			app := newTestApp(t, sqlStub, map[string]image.Generator{
				ProviderTogether: tc.generator,
				ProviderLeonardo: tc.generator,
			})

			bodyBytes, err := json.Marshal(tc.body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			req := httptest.NewRequest("POST", "/generate-jewelry", bytes.NewReader(bodyBytes))
			rr := httptest.NewRecorder()

			app.GenerateJewelry(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rr.Code, tc.wantStatus, rr.Body.String())
			}

			if tc.wantErrorSub != "" {
				var resp map[string]string
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error response: %v", err)
				}
				if !strings.Contains(resp["error"], tc.wantErrorSub) {
					t.Fatalf("error = %q, want substring %q", resp["error"], tc.wantErrorSub)
				}
				return
			}

			var resp generateResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if len(resp.Images) != tc.wantImages {
				t.Fatalf("images len = %d, want %d", len(resp.Images), tc.wantImages)
			}
			for _, p := range resp.Images {
				if !strings.HasPrefix(p, "/static/generated_designs/") {
					t.Fatalf("image path %q not under static mount", p)
				}
			}
			if tc.generator.last.Quantity != tc.wantQuantity {
				t.Fatalf("generator quantity = %d, want %d", tc.generator.last.Quantity, tc.wantQuantity)
			}

			rec := sqlStub.lastInserted()
			if rec == nil {
				t.Fatalf("expected design record to be inserted")
			}
			if rec.jewelryType != "ring" {
				t.Fatalf("recorded jewelry type = %q", rec.jewelryType)
			}
			var storedPaths []string
			if err := json.Unmarshal(rec.images, &storedPaths); err != nil {
				t.Fatalf("decode stored image paths: %v", err)
			}
			if len(storedPaths) != tc.wantImages {
				t.Fatalf("stored paths = %d, want %d", len(storedPaths), tc.wantImages)
			}

			promptPath := filepath.Join(app.Store.BasePath(), storage.DesignPrefix, rec.id, "prompt.txt")
			if _, err := os.Stat(promptPath); err != nil {
				t.Fatalf("prompt file not written: %v", err)
			}
		})
	}
}

func TestGenerateJewelryRejectsBadPayload(t *testing.T) {
	app := newTestApp(t, &stubSQL{}, nil)
	req := httptest.NewRequest("POST", "/generate-jewelry", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	app.GenerateJewelry(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGenerateJewelryStoresLeonardoModelSuffix(t *testing.T) {
	generator := &stubGenerator{assets: []image.Asset{{URL: "https://example.com/a.png", Data: []byte("a"), Format: "image/png"}}}
	sqlStub := &stubSQL{}
	app := newTestApp(t, sqlStub, map[string]image.Generator{
		ProviderTogether: &stubGenerator{},
		ProviderLeonardo: generator,
	})

	body := `{"jewelry_type":"ring","numImages":1,"model":"b24e16ff-custom","challenge":"i love lp"}`
	req := httptest.NewRequest("POST", "/generate-jewelry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	app.GenerateJewelry(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rr.Code, rr.Body.String())
	}
	rec := sqlStub.lastInserted()
	if rec == nil {
		t.Fatalf("expected design record to be inserted")
	}
	if !strings.HasSuffix(rec.prompt, "(Model: b24e16ff-custom)") {
		t.Fatalf("stored prompt = %q, want model suffix", rec.prompt)
	}
}

func TestGetSavedDesigns(t *testing.T) {
	sqlStub := &stubSQL{listRows: [][]any{
		{"design-2", "a halo ring", []byte(`["/static/generated_designs/design-2/image_1.png"]`)},
		{"design-1", "a pendant", []byte(`["/static/generated_designs/design-1/image_1.png"]`)},
	}}
	app := newTestApp(t, sqlStub, nil)

	req := httptest.NewRequest("GET", "/get-saved-designs", nil)
	rr := httptest.NewRecorder()

	app.GetSavedDesigns(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rr.Code, rr.Body.String())
	}
	var items []struct {
		FolderID string   `json:"folder_id"`
		Prompt   string   `json:"prompt"`
		Images   []string `json:"images"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].FolderID != "design-2" || len(items[0].Images) != 1 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
}

func TestGetSavedDesignsQueryFailure(t *testing.T) {
	sqlStub := &stubSQL{listErr: errors.New("connection refused")}
	app := newTestApp(t, sqlStub, nil)

	req := httptest.NewRequest("GET", "/get-saved-designs", nil)
	rr := httptest.NewRecorder()

	app.GetSavedDesigns(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestDesignZip(t *testing.T) {
	sqlStub := &stubSQL{}
	app := newTestApp(t, sqlStub, nil)

	key, err := app.Store.WriteDesignImage(context.Background(), "design-1", 1, "png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("write image: %v", err)
	}
	sqlStub.designRow = []any{"design-1", "a halo ring", []byte(`["` + app.assetURL(key) + `"]`)}

	req := httptest.NewRequest("GET", "/designs/design-1/zip", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "design-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	app.DesignZip(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("content type = %q", got)
	}
	reader, err := archivezip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := make(map[string]bool, len(reader.File))
	for _, f := range reader.File {
		names[f.Name] = true
	}
	if !names["prompt.txt"] || !names["image_1.png"] {
		t.Fatalf("archive entries = %v", names)
	}
}

func TestDesignZipNotFound(t *testing.T) {
	app := newTestApp(t, &stubSQL{}, nil)

	req := httptest.NewRequest("GET", "/designs/missing/zip", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	app.DesignZip(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetSavedDesignsEmptyIsArray(t *testing.T) {
	app := newTestApp(t, &stubSQL{}, nil)

	req := httptest.NewRequest("GET", "/get-saved-designs", nil)
	rr := httptest.NewRecorder()

	app.GetSavedDesigns(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want empty array", got)
	}
}
