// Package vector provides the dense vector index and similarity helpers.
package vector

import "context"

// Index defines vector storage and similarity search over chunk embeddings.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Get(id string) ([]float32, bool)
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit. ID is a chunk ID.
type Result struct {
	ID    string
	Score float64 // inner product; equals cosine similarity for normalized vectors
}
