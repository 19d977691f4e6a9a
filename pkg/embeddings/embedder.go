// Package embeddings
package embeddings

import "context"

// Embedder provides text embedding capabilities for memory content.
type Embedder interface {
	// Embed converts text into a vector embedding. Implementations must not
	// fail on oversized input; they truncate it instead.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
