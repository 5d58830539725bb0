// Package embedding provides text embedding via an external service.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are pure
// clients: failures are returned to the caller, never retried internally.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
