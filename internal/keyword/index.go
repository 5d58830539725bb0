// Package keyword provides the lexical (BM25) chunk index.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// ChunkIndex defines lexical search operations over chunk text.
type ChunkIndex interface {
	Index(ctx context.Context, chunk *models.Chunk) error
	IndexBatch(ctx context.Context, chunks []*models.Chunk) error
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error
	// Search returns up to limit hits ranked by keyword relevance,
	// restricted to chunks whose vectorization decision is VECTORIZE.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single lexical search hit. ID is a chunk ID.
type Result struct {
	ID    string
	Score float64
}
