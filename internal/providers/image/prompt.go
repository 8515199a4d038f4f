package image

import (
	"fmt"
	"strings"

	"jewelgen/internal/design"
)

// Placeholders kept in the prompt when the corresponding form branch is
// empty, so saved prompts show which slot was left open.
const (
	placeholderStyle    = "[Product Style]"
	placeholderComments = "[Comments]"
)

const promptSuffix = "Photographed in top-down, macro close-up, 3/4 perspective, and side profile displayed on mirrored surface, under softbox studio light, featuring %s --ar 1:1 --v 6 --style raw."

// BuildJewelryPrompt renders the per-type prompt template for the design
// request. Unknown jewelry types fall back to a generic catalog sentence.
func BuildJewelryPrompt(req design.Request) string {
	subject := subjectFor(req)
	if subject == "" {
		return "The images should be realistic, detailed, and suitable for a jewelry catalog."
	}

	style := strings.TrimSpace(req.ProductStyle)
	if style == "" {
		style = placeholderStyle
	}
	comments := strings.TrimSpace(req.Description)
	if comments == "" {
		comments = placeholderComments
	}

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "A high-resolution, ultra-detailed, sharp focus, hyper-realistic jewelry for %s rendering of a %s, ", req.Gender, subject)
	fmt.Fprintf(sb, "crafted from %s, featuring a %s center stone, in a %s setting, in a %s style. ", req.MetalType, req.StoneType, req.SettingType, style)
	fmt.Fprintf(sb, promptSuffix, comments)
	return sb.String()
}

// subjectFor names the rendered piece, including the free-form variant the
// user picked from the dynamic options.
func subjectFor(req design.Request) string {
	var noun string
	switch strings.ToLower(strings.TrimSpace(req.JewelryType)) {
	case design.TypeRing:
		noun = "ring"
	case design.TypeEarring:
		noun = "pair of earrings"
	case design.TypePendant:
		noun = "pendant"
	case design.TypeBracelet:
		noun = "bracelet"
	case design.TypeNecklace:
		noun = "necklace"
	default:
		return ""
	}
	if variant := strings.TrimSpace(req.DynamicOption); variant != "" {
		return variant + " " + noun
	}
	return noun
}
