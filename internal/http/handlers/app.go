package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"jewelgen/internal/design"
	"jewelgen/internal/infra"
	"jewelgen/internal/infra/geoip"
	"jewelgen/internal/providers/image"
	"jewelgen/internal/providers/prompt"
	"jewelgen/internal/storage"
)

// Provider registry keys.
const (
	ProviderLeonardo = "leonardo"
	ProviderTogether = "together"
)

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	Config     *infra.Config
	Logger     infra.Logger
	SQL        infra.SQLExecutor
	Store      *storage.FileStore
	Generators map[string]image.Generator
	Enhancer   prompt.Enhancer
	Styles     design.StyleTable
	GeoIP      geoip.CountryResolver
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes the flat {"error": "..."} envelope the web client consumes.
func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

// assetURL maps a storage key to the public path served under /static.
func (a *App) assetURL(storageKey string) string {
	base := strings.TrimRight(a.Config.StorageBaseURL, "/")
	return base + "/" + strings.TrimLeft(storageKey, "/")
}

// storageKey reverses assetURL, returning "" for paths outside the static
// mount.
func (a *App) storageKey(assetPath string) string {
	base := strings.TrimRight(a.Config.StorageBaseURL, "/") + "/"
	if !strings.HasPrefix(assetPath, base) {
		return ""
	}
	return strings.TrimPrefix(assetPath, base)
}

// clientCountry resolves the requester's ISO country code, best effort.
func (a *App) clientCountry(r *http.Request) string {
	if a.GeoIP == nil {
		return ""
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	code, err := a.GeoIP.CountryCode(host)
	if err != nil {
		return ""
	}
	return code
}
