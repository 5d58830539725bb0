package models

import "time"

// ChunkKind distinguishes heading-level chunks from content chunks.
type ChunkKind string

const (
	ChunkKindHeading ChunkKind = "heading"
	ChunkKindContent ChunkKind = "content"
)

// VectorizationDecision marks whether a chunk is embedded and retrievable.
type VectorizationDecision string

const (
	DecisionVectorize VectorizationDecision = "VECTORIZE"
	DecisionSkip      VectorizationDecision = "SKIP"
)

// EmbeddingStatus tracks a chunk's progress through the embedding step.
type EmbeddingStatus string

const (
	EmbeddingNotQueued EmbeddingStatus = "not_queued"
	EmbeddingQueued    EmbeddingStatus = "queued"
	EmbeddingEmbedded  EmbeddingStatus = "embedded"
	EmbeddingError     EmbeddingStatus = "embedding_error"
)

// Chunk is a stored, addressable span of document text. Text is immutable
// once created; re-applying a pipeline stage supersedes prior chunks for
// that kind rather than mutating them.
type Chunk struct {
	ID              string                `json:"id" db:"id"`
	DocumentID      string                `json:"document_id" db:"document_id"`
	Kind            ChunkKind             `json:"kind" db:"kind"`
	StartLine       int                   `json:"start_line" db:"start_line"`
	EndLine         int                   `json:"end_line" db:"end_line"`
	Text            string                `json:"text" db:"text"`
	Decision        VectorizationDecision `json:"vectorization_decision" db:"vectorization_decision"`
	EmbeddingStatus EmbeddingStatus       `json:"embedding_status" db:"embedding_status"`
	Embedding       []float32             `json:"-" db:"-"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
}

// Stage identifies a chunk-producing pipeline stage.
type Stage string

const (
	StageHeadingChunks Stage = "heading_chunks"
	StageContentChunks Stage = "content_chunks"
)

// ChunkKind returns the chunk kind produced by this stage.
func (s Stage) ChunkKind() ChunkKind {
	if s == StageHeadingChunks {
		return ChunkKindHeading
	}
	return ChunkKindContent
}

// StageState is a pipeline stage flag for one document.
type StageState string

const (
	StageUnstarted StageState = "unstarted"
	StagePending   StageState = "pending"
	StageCompleted StageState = "completed"
	StageFailed    StageState = "failed"
)

// PipelineStatus holds both stage flags for a document.
type PipelineStatus struct {
	DocumentID    string     `json:"document_id" db:"document_id"`
	HeadingChunks StageState `json:"heading_chunks" db:"heading_chunks"`
	ContentChunks StageState `json:"content_chunks" db:"content_chunks"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
