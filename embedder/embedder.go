// Package embedder turns driving-footage frames and free-text queries into
// unit-length embedding vectors via an external AI service, gated by a
// ratelimit.Limiter.
package embedder

import (
	"context"
	"errors"
)

// Error kinds surfaced by encoders. Callers dispatch with errors.Is; rate
// limit and upstream failures are retryable, encoding failures are not for
// the same input.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrUpstream    = errors.New("upstream AI service error")
	ErrEncoding    = errors.New("embedding could not be normalized")
)

// Image is raw frame content handed to a vision model.
type Image struct {
	ContentType string
	Bytes       []byte
}

// Encoder produces L2-normalized embedding vectors for text queries and
// frame images.
type Encoder interface {
	Model() string
	Dimensions() int
	EncodeText(ctx context.Context, query string) ([]float32, error)
	EncodeImage(ctx context.Context, img Image) ([]float32, error)
}

// EstimateTokens approximates the token count of text. It is the documented
// len/4 heuristic, not an exact tokenizer; swap in a real tokenizer via
// Config.EstimateTokens without touching the limiter.
func EstimateTokens(text string) int {
	return len(text) / 4
}
