// Package provider implements the text-generation capability consumed by the
// expert panel and the provider-backed sub-agent variants. The core is
// agnostic to which service backs it.
package provider

import "context"

// Options tunes a single generation call. Zero values fall back to the
// provider's configured defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// TextGenerator is the interface the pipeline consumes.
type TextGenerator interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}
