package embeddings

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding backend could not be reached.
// Callers decide whether to retry; embedders never retry internally.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder defines the interface for generating text embeddings.
//
// The Name() of the embedder that built an index is pinned in the index
// metadata; queries against an index built by a differently named embedder
// are rejected rather than silently returning degraded results.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns a stable identity for the embedding model.
	Name() string
}
