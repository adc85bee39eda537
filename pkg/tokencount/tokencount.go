// Package tokencount provides tiktoken-based token counting utilities shared
// by the rate limiter, context builder, and conversation service.
package tokencount

import (
	"github.com/tiktoken-go/tokenizer"
)

// Counter provides accurate token counting. All models in this core route
// through a GPT-4-compatible encoding; Claude does not publish a public
// tokenizer, so GPT-4's is used as the closest available approximation for
// budget enforcement (not billing, which uses the provider's own usage counts).
type Counter struct {
	codec tokenizer.Codec
}

// New creates a new token counter.
func New() *Counter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &Counter{}
	}
	return &Counter{codec: codec}
}

// Count returns the number of tokens in text, falling back to a
// character-based estimate (4 chars ≈ 1 token) if the codec is unavailable.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		return len(text) / 4
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

//nolint:gochecknoglobals // shared default counter, stateless aside from its codec
var shared = New()

// Count counts tokens in text using the shared default counter.
func Count(text string) int {
	return shared.Count(text)
}

// TruncateToLimit truncates text so it fits within limit tokens, by
// proportional character truncation with a small safety margin.
func TruncateToLimit(text string, limit int) string {
	current := Count(text)
	if current <= limit {
		return text
	}
	ratio := float64(limit) / float64(current)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) {
		return text
	}
	return text[:charLimit] + "…"
}
