// Package embed defines the embedding provider contract and an
// OpenAI-compatible HTTP client implementing it.
package embed

import (
	"context"
	"errors"
)

// ErrUnavailable marks provider failures: unreachable endpoint, missing
// credentials, or a malformed response. Callers check it with errors.Is.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider maps a batch of input strings to one fixed-length vector per
// input, in the same order. Implementations must not return partial results:
// either every input gets a vector or the call fails.
type Provider interface {
	Embeddings(ctx context.Context, inputs []string) ([][]float32, error)
}
