package design

// Jewelry types understood by the form and the prompt templates.
const (
	TypeRing     = "ring"
	TypeEarring  = "earring"
	TypePendant  = "pendant"
	TypeBracelet = "bracelet"
	TypeNecklace = "necklace"
)

// DefaultModel selects the Together FLUX.1-dev backend unless the user picks
// a specific Leonardo model ID.
const DefaultModel = "together-flux1.dev"

const (
	// MinImages and MaxImages bound the numImages counter.
	MinImages = 1
	MaxImages = 8
)

// Request is the full set of parameters describing a jewelry item to be
// generated. Field names follow the wire contract of POST /generate-jewelry.
type Request struct {
	JewelryType   string `json:"jewelry_type"`
	MetalType     string `json:"metal_type"`
	StoneType     string `json:"stone_type"`
	Gender        string `json:"gender"`
	Description   string `json:"description"`
	ProductStyle  string `json:"product_style"`
	SettingType   string `json:"setting_type"`
	NumImages     int    `json:"numImages"`
	Model         string `json:"model"`
	EnhancePrompt bool   `json:"enhancePrompt"`
	Challenge     string `json:"challenge"`
	DynamicOption string `json:"dynamicOption"`
}

// NewRequest returns a request populated with the form defaults.
func NewRequest() Request {
	return Request{
		MetalType: "yellow gold",
		StoneType: "diamond",
		Gender:    "women",
		NumImages: MinImages,
		Model:     DefaultModel,
	}
}
