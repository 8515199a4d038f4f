package design

import (
	"errors"
	"strings"
)

// Validation failures surfaced to the user before any request is made.
var (
	ErrMissingJewelryType = errors.New("Please select a jewelry type.")
	ErrMissingDescription = errors.New("Please describe your design idea.")
	ErrMissingStyle       = errors.New("Please select a product style and setting type.")
)

// Form is the serializable state of the design form. It embeds the working
// Request and tracks which of the two mutually exclusive input modes is
// active: structured style/setting selection, or a free-text description.
// All transitions are pure; they return the successor state and leave the
// receiver untouched.
type Form struct {
	Request        Request `json:"request"`
	IsCommentsMode bool    `json:"isCommentsMode"`
}

// NewForm returns the initial form state: structured mode, default request.
func NewForm() Form {
	return Form{Request: NewRequest()}
}

// ToggleInputMode flips between structured and comments mode. Entering
// comments mode clears the structured branch; leaving it clears the
// description, so exactly one branch is ever populated.
func (f Form) ToggleInputMode() Form {
	f.IsCommentsMode = !f.IsCommentsMode
	if f.IsCommentsMode {
		f.Request.ProductStyle = ""
		f.Request.SettingType = ""
	} else {
		f.Request.Description = ""
	}
	return f
}

// IncrementImages raises numImages by one, saturating at MaxImages.
func (f Form) IncrementImages() Form {
	if f.Request.NumImages < MaxImages {
		f.Request.NumImages++
	}
	return f
}

// DecrementImages lowers numImages by one, saturating at MinImages.
func (f Form) DecrementImages() Form {
	if f.Request.NumImages > MinImages {
		f.Request.NumImages--
	}
	return f
}

// Validate checks that a jewelry type is selected and that the fields of the
// active input mode are populated.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Request.JewelryType) == "" {
		return ErrMissingJewelryType
	}
	if f.IsCommentsMode {
		if strings.TrimSpace(f.Request.Description) == "" {
			return ErrMissingDescription
		}
		return nil
	}
	if strings.TrimSpace(f.Request.ProductStyle) == "" || strings.TrimSpace(f.Request.SettingType) == "" {
		return ErrMissingStyle
	}
	return nil
}
