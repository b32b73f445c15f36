package generation

import "context"

// ImageResult is the outcome of a successful image generation.
type ImageResult struct {
	// URL references the generated image. It may be a plain URL or a
	// data URI embedding the image bytes.
	URL string
}

// ImageGenerator produces an image for a prompt.
type ImageGenerator interface {
	// Generate runs the image stage for prompt. It blocks until the image is
	// ready, the backend fails fatally, or ctx is done.
	Generate(ctx context.Context, prompt string) (ImageResult, error)
}

// CaptionGenerator writes a caption for a generated image.
type CaptionGenerator interface {
	// Caption returns a caption for the image at imageURL, guided by prompt.
	// An empty caption with a nil error is a valid outcome.
	Caption(ctx context.Context, imageURL, prompt string) (string, error)
}

// Pair is the set of generators a job runs with.
type Pair struct {
	Image   ImageGenerator
	Caption CaptionGenerator
}

// Valid reports whether both generators are set.
func (p Pair) Valid() bool {
	return p.Image != nil && p.Caption != nil
}
