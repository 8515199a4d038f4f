package design

import (
	"context"
	"encoding/json"
	"errors"

	"jewelgen/internal/infra"
)

// User-facing messages for the generation flow.
const (
	MsgNoImages       = "No images returned. Please try again."
	MsgGenerateFailed = "Failed to generate images. Please try again."
)

// GenerateResult is the decoded success response of the generation endpoint.
type GenerateResult struct {
	Images []string `json:"images"`
}

// Backend is the outbound surface the controller depends on: the generation
// endpoint and the saved-design listing.
type Backend interface {
	Generate(ctx context.Context, req Request) (*GenerateResult, error)
	SavedDesigns(ctx context.Context) ([]json.RawMessage, error)
}

// UserMessager is implemented by backend errors that carry a server-reported
// message suitable for direct display.
type UserMessager interface {
	UserMessage() string
}

// Controller owns the design form state, mediates edits through the pure
// Form reducers, and talks to the backend. It mirrors a single-page event
// loop: methods must be called from one goroutine at a time. Overlapping
// generation calls are fenced by a monotonically increasing token so a stale
// completion can never overwrite a newer submission's result.
type Controller struct {
	logger  infra.Logger
	backend Backend
	styles  StyleTable

	form         Form
	images       []string
	savedDesigns []json.RawMessage
	errorMessage string
	loading      bool
	genToken     uint64
}

// NewController builds a controller with the initial form state.
func NewController(backend Backend, styles StyleTable, logger infra.Logger) *Controller {
	return &Controller{
		logger:  logger,
		backend: backend,
		styles:  styles,
		form:    NewForm(),
	}
}

// Form returns the current form state.
func (c *Controller) Form() Form { return c.form }

// Images returns the most recent generation result.
func (c *Controller) Images() []string { return c.images }

// SavedDesigns returns the last fetched saved-design records, verbatim.
func (c *Controller) SavedDesigns() []json.RawMessage { return c.savedDesigns }

// ErrorMessage returns the current user-visible error, or "".
func (c *Controller) ErrorMessage() string { return c.errorMessage }

// Loading reports whether a generation request is in flight.
func (c *Controller) Loading() bool { return c.loading }

// ToggleInputMode flips between structured and comments mode.
func (c *Controller) ToggleInputMode() { c.form = c.form.ToggleInputMode() }

// IncrementImages raises the image counter, clamped to the allowed range.
func (c *Controller) IncrementImages() { c.form = c.form.IncrementImages() }

// DecrementImages lowers the image counter, clamped to the allowed range.
func (c *Controller) DecrementImages() { c.form = c.form.DecrementImages() }

// UpdateRequest applies an edit to the working request through a pure
// transition function.
func (c *Controller) UpdateRequest(fn func(Request) Request) {
	c.form.Request = fn(c.form.Request)
}

// DynamicOptions returns the style options for the currently selected
// jewelry type.
func (c *Controller) DynamicOptions() []string {
	return c.styles.Options(c.form.Request.JewelryType)
}

// GenerateImages validates the form and submits it to the backend. On
// success the returned images replace the current list and the saved-design
// list is refreshed. On failure a user-visible message is set; nothing is
// retried and the controller stays usable.
func (c *Controller) GenerateImages(ctx context.Context) {
	if err := c.form.Validate(); err != nil {
		c.errorMessage = err.Error()
		return
	}
	token := c.beginGenerate()
	res, err := c.backend.Generate(ctx, c.form.Request)
	if c.completeGenerate(token, res, err) {
		c.FetchSavedDesigns(ctx)
	}
}

// beginGenerate clears prior results, raises the loading flag, and issues a
// fresh fencing token for the submission.
func (c *Controller) beginGenerate() uint64 {
	c.errorMessage = ""
	c.images = nil
	c.loading = true
	c.genToken++
	return c.genToken
}

// completeGenerate applies a generation outcome. Completions carrying a
// stale token are discarded. It reports whether images were stored, which is
// the trigger for a saved-design refresh.
func (c *Controller) completeGenerate(token uint64, res *GenerateResult, err error) bool {
	if token != c.genToken {
		c.logger.Debug().Uint64("token", token).Msg("design: discarding stale generation result")
		return false
	}
	c.loading = false
	if err != nil {
		var um UserMessager
		if errors.As(err, &um) && um.UserMessage() != "" {
			c.errorMessage = um.UserMessage()
		} else {
			c.errorMessage = MsgGenerateFailed
		}
		return false
	}
	if res == nil || len(res.Images) == 0 {
		c.errorMessage = MsgNoImages
		return false
	}
	c.images = res.Images
	return true
}

// FetchSavedDesigns refreshes the saved-design list. Failures are logged but
// never surfaced: the list is supplementary and the previous records are
// kept.
func (c *Controller) FetchSavedDesigns(ctx context.Context) {
	items, err := c.backend.SavedDesigns(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("design: failed to fetch saved designs")
		return
	}
	c.savedDesigns = items
}
