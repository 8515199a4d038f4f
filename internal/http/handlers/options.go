package handlers

import (
	"net/http"

	"jewelgen/internal/design"
)

type designOptions struct {
	Styles   map[string][]string `json:"styles"`
	Settings []string            `json:"settings"`
}

// DesignOptions handles GET /design-options: the style choices the form
// offers per jewelry type, plus the shared setting types.
func (a *App) DesignOptions(w http.ResponseWriter, r *http.Request) {
	out := designOptions{
		Styles:   make(map[string][]string),
		Settings: a.Styles.SettingTypes(),
	}
	for _, jewelryType := range []string{
		design.TypeRing,
		design.TypeEarring,
		design.TypePendant,
		design.TypeBracelet,
		design.TypeNecklace,
	} {
		if options := a.Styles.Options(jewelryType); options != nil {
			out.Styles[jewelryType] = options
		}
	}
	a.json(w, http.StatusOK, out)
}
