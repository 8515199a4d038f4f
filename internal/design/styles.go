package design

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StyleTable maps a jewelry type to the ordered list of product styles the
// form offers for it, plus the shared setting types. The table is read-only
// configuration data: built once, never mutated.
type StyleTable struct {
	styles   map[string][]string
	settings []string
}

type styleTableFile struct {
	Styles   map[string][]string `json:"styles"`
	Settings []string            `json:"settings"`
}

// DefaultStyleTable returns the built-in option lists.
func DefaultStyleTable() StyleTable {
	return StyleTable{
		styles: map[string][]string{
			TypeRing:     {"Solitaire", "Halo", "Three Stone", "Vintage", "Cluster", "Eternity"},
			TypeEarring:  {"Stud", "Hoop", "Drop", "Dangle", "Chandelier", "Huggie"},
			TypePendant:  {"Solitaire", "Halo", "Locket", "Cross", "Initial"},
			TypeBracelet: {"Tennis", "Bangle", "Cuff", "Chain", "Charm"},
			TypeNecklace: {"Chain", "Choker", "Lariat", "Station", "Collar"},
		},
		settings: []string{"Prong", "Bezel", "Pave", "Channel", "Tension", "Flush"},
	}
}

// LoadStyleTable reads the option lists from a JSON file. An empty path
// yields the built-in defaults. Option names are normalized to title case so
// the config file can be written in any casing.
func LoadStyleTable(path string) (StyleTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultStyleTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return StyleTable{}, fmt.Errorf("design: read style table: %w", err)
	}
	var file styleTableFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return StyleTable{}, fmt.Errorf("design: parse style table: %w", err)
	}
	titler := cases.Title(language.English)
	table := StyleTable{styles: make(map[string][]string, len(file.Styles))}
	for jewelryType, options := range file.Styles {
		key := strings.ToLower(strings.TrimSpace(jewelryType))
		normalized := make([]string, 0, len(options))
		for _, opt := range options {
			opt = strings.TrimSpace(opt)
			if opt != "" {
				normalized = append(normalized, titler.String(opt))
			}
		}
		table.styles[key] = normalized
	}
	for _, s := range file.Settings {
		s = strings.TrimSpace(s)
		if s != "" {
			table.settings = append(table.settings, titler.String(s))
		}
	}
	if len(table.settings) == 0 {
		table.settings = DefaultStyleTable().settings
	}
	return table, nil
}

// Options returns the product styles for the given jewelry type, or nil when
// the type is unknown.
func (t StyleTable) Options(jewelryType string) []string {
	options, ok := t.styles[strings.ToLower(strings.TrimSpace(jewelryType))]
	if !ok {
		return nil
	}
	out := make([]string, len(options))
	copy(out, options)
	return out
}

// SettingTypes returns the shared setting type options.
func (t StyleTable) SettingTypes() []string {
	out := make([]string, len(t.settings))
	copy(out, t.settings)
	return out
}
