// Package storage defines the persistence interface for documents,
// artifacts, chunks, queries, results, and retrieval config presets.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// InsufficientContextError reports fewer context items than the required
// floor. The dependent write is rejected before persistence.
type InsufficientContextError struct {
	Got int
	Min int
}

func (e *InsufficientContextError) Error() string {
	return fmt.Sprintf("insufficient context: got %d items, need at least %d", e.Got, e.Min)
}

// Storage defines all persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Artifact records (file content lives on disk, see internal/artifact)
	UpsertArtifact(ctx context.Context, a *models.Artifact) error
	GetArtifact(ctx context.Context, docID string, kind models.ArtifactKind) (*models.Artifact, error)

	// Pipeline stage flags
	GetPipelineStatus(ctx context.Context, docID string) (*models.PipelineStatus, error)
	SetStageState(ctx context.Context, docID string, stage models.Stage, state models.StageState) error

	// Chunk operations. ReplaceChunks atomically supersedes all chunks of
	// the given kind for a document; old rows are never left half-updated.
	ReplaceChunks(ctx context.Context, docID string, kind models.ChunkKind, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksByIDs(ctx context.Context, ids []string) ([]*models.Chunk, error)
	GetChunksByDocument(ctx context.Context, docID string, kind models.ChunkKind) ([]*models.Chunk, error)
	SetEmbeddingStatus(ctx context.Context, ids []string, status models.EmbeddingStatus) error
	ListChunksByDecision(ctx context.Context, decision models.VectorizationDecision) ([]*models.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)

	// Query operations. SaveCleanContext enforces the minimum-items floor
	// and preserves caller-supplied ordering.
	CreateQuery(ctx context.Context, q *models.Query) error
	GetQuery(ctx context.Context, id string) (*models.Query, error)
	SaveCleanContext(ctx context.Context, queryID string, items []string) error

	// Result operations. Results are append-only history.
	AppendResult(ctx context.Context, r *models.Result) error
	ListResults(ctx context.Context, queryID string) ([]*models.Result, error)

	// RagConfig presets. Exactly one preset is the default at any time;
	// SetDefaultRagConfig swaps the flag in a single transaction.
	CreateRagConfig(ctx context.Context, c *models.RagConfig) error
	UpdateRagConfig(ctx context.Context, c *models.RagConfig) error
	GetRagConfig(ctx context.Context, id string) (*models.RagConfig, error)
	GetRagConfigByName(ctx context.Context, name string) (*models.RagConfig, error)
	GetDefaultRagConfig(ctx context.Context) (*models.RagConfig, error)
	ListRagConfigs(ctx context.Context) ([]*models.RagConfig, error)
	SetDefaultRagConfig(ctx context.Context, id string) error

	Close() error
}
