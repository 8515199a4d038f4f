package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"jewelgen/internal/http/handlers"
	"jewelgen/internal/middleware"
)

// NewRouter wires the HTTP surface: the two legacy form endpoints, the zip
// download, health, and the static mount for stored images.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(app.Config.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Post("/generate-jewelry", app.GenerateJewelry)
	r.Get("/get-saved-designs", app.GetSavedDesigns)
	r.Get("/design-options", app.DesignOptions)
	r.Get("/designs/{id}/zip", app.DesignZip)

	if app.Store != nil {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Store.BasePath())))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
