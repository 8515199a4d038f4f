package prompt

import "context"

// Enhancer expands a raw jewelry prompt into a more detailed one for the
// image model. Implementations fall back to returning the input unchanged
// when enhancement is unavailable, so callers never lose the prompt.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

// Passthrough is the fallback enhancer: it returns the prompt as-is.
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Enhance(ctx context.Context, prompt string) (string, error) {
	return prompt, nil
}

var _ Enhancer = (*Passthrough)(nil)
