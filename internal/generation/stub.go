package generation

import (
	"context"
	"strings"
)

// stubPromptChars caps how much of the prompt ends up in a stub image URL.
const stubPromptChars = 16

// StubImageGenerator returns a deterministic placeholder URL derived from the
// prompt. It never fails and never blocks.
type StubImageGenerator struct{}

// Generate implements ImageGenerator.
func (StubImageGenerator) Generate(ctx context.Context, prompt string) (ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return ImageResult{}, err
	}
	safe := strings.ReplaceAll(strings.ToLower(prompt), "\n", " ")
	if runes := []rune(safe); len(runes) > stubPromptChars {
		safe = string(runes[:stubPromptChars])
	}
	if safe == "" {
		safe = "img"
	}
	return ImageResult{URL: "https://example.com/art/" + safe + ".jpg"}, nil
}

// StubCaptionGenerator echoes the prompt back as the caption.
type StubCaptionGenerator struct{}

// Caption implements CaptionGenerator.
func (StubCaptionGenerator) Caption(ctx context.Context, imageURL, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "caption: " + prompt, nil
}

// StubPair returns the offline generator pair.
func StubPair() Pair {
	return Pair{Image: StubImageGenerator{}, Caption: StubCaptionGenerator{}}
}
