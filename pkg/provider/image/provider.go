// Package image defines the Provider interface for text-to-image backends.
//
// Implementations must be safe for concurrent use and honour context
// cancellation.
package image

import "context"

// Request describes one image to generate.
type Request struct {
	// Prompt is the natural-language description of the image.
	Prompt string

	// Width and Height are the desired dimensions in pixels. Backends that
	// only support fixed sizes pick the closest supported size with the same
	// orientation. Zero means the backend default.
	Width  int
	Height int
}

// Result is a generated image. Exactly one of URL or B64JSON is set,
// depending on what the backend returns.
type Result struct {
	// URL points at the hosted image.
	URL string

	// B64JSON is the base64-encoded image payload.
	B64JSON string

	// RevisedPrompt is the prompt the backend actually used, when it rewrites
	// prompts before generation.
	RevisedPrompt string

	// Width and Height are the dimensions that were requested from the
	// backend after size normalisation.
	Width  int
	Height int
}

// Provider generates images from text prompts.
type Provider interface {
	// Generate creates a single image for req.
	Generate(ctx context.Context, req Request) (*Result, error)
}
