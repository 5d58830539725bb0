// Package pipeline turns verified document artifacts into stored, indexed
// chunks. Stages are idempotent and gated on artifact hash validity.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// embedBatchSize bounds how many chunk texts go to the embedder per call.
const embedBatchSize = 32

// Pipeline runs the chunking stages for documents. Concurrent applies for
// the same (document, stage) pair are serialized by a keyed mutex; distinct
// pairs proceed in parallel.
type Pipeline struct {
	store     storage.Storage
	artifacts *artifact.Store
	embedder  embedding.Embedder
	vectors   vector.Index
	keywords  keyword.ChunkIndex
	// DefaultDecision applies to heading lines missing from the
	// vectorization-suggestions artifact.
	DefaultDecision models.VectorizationDecision
	logger          *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a pipeline. embedder may be nil, in which case
// VECTORIZE chunks stay queued and only the lexical index is populated.
func NewPipeline(
	store storage.Storage,
	artifacts *artifact.Store,
	embedder embedding.Embedder,
	vectors vector.Index,
	keywords keyword.ChunkIndex,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:           store,
		artifacts:       artifacts,
		embedder:        embedder,
		vectors:         vectors,
		keywords:        keywords,
		DefaultDecision: models.DecisionVectorize,
		logger:          logger,
		locks:           make(map[string]*sync.Mutex),
	}
}

// stageLock returns the mutex for one (document, stage) pair.
func (p *Pipeline) stageLock(docID string, stage models.Stage) *sync.Mutex {
	key := docID + "/" + string(stage)
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// Evaluate reports the current file status of every artifact kind for a
// document. Hashes are recomputed from disk on each call.
func (p *Pipeline) Evaluate(ctx context.Context, docID string) (map[models.ArtifactKind]models.FileStatus, error) {
	if _, err := p.store.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	return p.artifacts.StatusAll(ctx, docID)
}

// checkPreconditions verifies that all three artifacts exist and are
// hash-valid. The first failing kind is reported.
func (p *Pipeline) checkPreconditions(ctx context.Context, docID string) error {
	for _, kind := range models.ArtifactKinds {
		status, err := p.artifacts.Status(ctx, docID, kind)
		if err != nil {
			return err
		}
		if !status.Exists {
			return &PreconditionError{DocumentID: docID, Kind: kind, Reason: "is missing"}
		}
		if !status.HashMatch {
			return &PreconditionError{DocumentID: docID, Kind: kind, Reason: "content hash does not match recorded hash"}
		}
	}
	return nil
}

// ApplyHeadingChunks runs the heading-chunk stage. Without force a completed
// stage is a no-op; with force existing heading chunks are superseded.
func (p *Pipeline) ApplyHeadingChunks(ctx context.Context, docID string, force bool) ([]*models.Chunk, error) {
	return p.applyStage(ctx, docID, models.StageHeadingChunks, force)
}

// ApplyContentChunks runs the content-chunk stage. Without force a completed
// stage is a no-op; with force existing content chunks are superseded.
func (p *Pipeline) ApplyContentChunks(ctx context.Context, docID string, force bool) ([]*models.Chunk, error) {
	return p.applyStage(ctx, docID, models.StageContentChunks, force)
}

func (p *Pipeline) applyStage(ctx context.Context, docID string, stage models.Stage, force bool) ([]*models.Chunk, error) {
	lock := p.stageLock(docID, stage)
	lock.Lock()
	defer lock.Unlock()

	if _, err := p.store.GetDocument(ctx, docID); err != nil {
		return nil, err
	}

	status, err := p.store.GetPipelineStatus(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !force && stageState(status, stage) == models.StageCompleted {
		return p.store.GetChunksByDocument(ctx, docID, stage.ChunkKind())
	}

	if err := p.checkPreconditions(ctx, docID); err != nil {
		return nil, err
	}

	if err := p.store.SetStageState(ctx, docID, stage, models.StagePending); err != nil {
		return nil, err
	}

	chunks, err := p.buildChunks(ctx, docID, stage)
	if err != nil {
		if stateErr := p.store.SetStageState(ctx, docID, stage, models.StageFailed); stateErr != nil {
			p.logger.Error("failed to mark stage failed", zap.String("document_id", docID), zap.Error(stateErr))
		}
		return nil, err
	}

	old, err := p.store.GetChunksByDocument(ctx, docID, stage.ChunkKind())
	if err != nil {
		return nil, err
	}
	if err := p.store.ReplaceChunks(ctx, docID, stage.ChunkKind(), chunks); err != nil {
		if stateErr := p.store.SetStageState(ctx, docID, stage, models.StageFailed); stateErr != nil {
			p.logger.Error("failed to mark stage failed", zap.String("document_id", docID), zap.Error(stateErr))
		}
		return nil, err
	}
	if err := p.deindex(ctx, old); err != nil {
		return nil, err
	}

	if err := p.embedAndIndex(ctx, chunks); err != nil {
		if stateErr := p.store.SetStageState(ctx, docID, stage, models.StageFailed); stateErr != nil {
			p.logger.Error("failed to mark stage failed", zap.String("document_id", docID), zap.Error(stateErr))
		}
		return nil, err
	}

	if err := p.store.SetStageState(ctx, docID, stage, models.StageCompleted); err != nil {
		return nil, err
	}
	p.logger.Info("pipeline stage completed",
		zap.String("document_id", docID),
		zap.String("stage", string(stage)),
		zap.Int("chunks", len(chunks)),
		zap.Bool("force", force),
	)
	return chunks, nil
}

// buildChunks derives chunks of the stage's kind from the verified
// artifacts. It reads artifacts with hash verification so a file modified
// between the precondition check and here still fails loudly.
func (p *Pipeline) buildChunks(ctx context.Context, docID string, stage models.Stage) ([]*models.Chunk, error) {
	sanitized, err := p.artifacts.ReadVerified(ctx, docID, models.ArtifactSanitized)
	if err != nil {
		return nil, err
	}
	titlesRaw, err := p.artifacts.ReadVerified(ctx, docID, models.ArtifactHeadingTitles)
	if err != nil {
		return nil, err
	}
	decisionsRaw, err := p.artifacts.ReadVerified(ctx, docID, models.ArtifactVecSuggestions)
	if err != nil {
		return nil, err
	}

	headings, err := parseHeadingTitles(titlesRaw)
	if err != nil {
		return nil, err
	}
	decisions, err := parseDecisions(decisionsRaw)
	if err != nil {
		return nil, err
	}

	lines := utils.SplitLines(string(sanitized))
	spans := headingSpans(headings, len(lines))

	now := time.Now().UTC()
	var chunks []*models.Chunk
	for _, span := range spans {
		decision := decisionFor(decisions, span.headingLine, p.DefaultDecision)
		switch stage {
		case models.StageHeadingChunks:
			text := strings.Join(lines[span.start-1:span.end], "\n")
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, &models.Chunk{
				ID:              uuid.New().String(),
				DocumentID:      docID,
				Kind:            models.ChunkKindHeading,
				StartLine:       span.start,
				EndLine:         span.end,
				Text:            text,
				Decision:        decision,
				EmbeddingStatus: models.EmbeddingNotQueued,
				CreatedAt:       now,
			})
		case models.StageContentChunks:
			body := lines[span.start-1 : span.end]
			for _, block := range splitParagraphs(body) {
				text := strings.Join(body[block[0]:block[1]+1], "\n")
				if strings.TrimSpace(text) == "" {
					continue
				}
				chunks = append(chunks, &models.Chunk{
					ID:              uuid.New().String(),
					DocumentID:      docID,
					Kind:            models.ChunkKindContent,
					StartLine:       span.start + block[0],
					EndLine:         span.start + block[1],
					Text:            text,
					Decision:        decision,
					EmbeddingStatus: models.EmbeddingNotQueued,
					CreatedAt:       now,
				})
			}
		default:
			return nil, fmt.Errorf("unknown stage %q", stage)
		}
	}
	return chunks, nil
}

// headingSpan is the line range a heading governs, 1-based inclusive.
type headingSpan struct {
	headingLine int
	start       int
	end         int
}

// headingSpans converts heading entries into contiguous spans covering the
// document. Each span runs from its heading line to the line before the next
// heading (or end of document). A document with no headings is one span.
func headingSpans(headings []HeadingEntry, totalLines int) []headingSpan {
	if totalLines == 0 {
		return nil
	}
	if len(headings) == 0 {
		return []headingSpan{{headingLine: 1, start: 1, end: totalLines}}
	}
	var spans []headingSpan
	for i, h := range headings {
		if h.Line > totalLines {
			break
		}
		end := totalLines
		if i+1 < len(headings) && headings[i+1].Line-1 < end {
			end = headings[i+1].Line - 1
		}
		spans = append(spans, headingSpan{headingLine: h.Line, start: h.Line, end: end})
	}
	return spans
}

// embedAndIndex embeds VECTORIZE chunks and registers them in the vector and
// lexical indices. Embedding failures mark affected chunks embedding_error
// and surface the error; already-indexed chunks from earlier batches stay.
func (p *Pipeline) embedAndIndex(ctx context.Context, chunks []*models.Chunk) error {
	var vectorize []*models.Chunk
	for _, c := range chunks {
		if c.Decision == models.DecisionVectorize {
			vectorize = append(vectorize, c)
		}
	}
	if len(vectorize) == 0 {
		return nil
	}

	if err := p.keywords.IndexBatch(ctx, vectorize); err != nil {
		return err
	}

	if p.embedder == nil {
		ids := chunkIDs(vectorize)
		return p.store.SetEmbeddingStatus(ctx, ids, models.EmbeddingQueued)
	}

	for start := 0; start < len(vectorize); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(vectorize) {
			end = len(vectorize)
		}
		batch := vectorize[start:end]
		ids := chunkIDs(batch)
		if err := p.store.SetEmbeddingStatus(ctx, ids, models.EmbeddingQueued); err != nil {
			return err
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if stateErr := p.store.SetEmbeddingStatus(ctx, ids, models.EmbeddingError); stateErr != nil {
				p.logger.Error("failed to mark embedding error", zap.Error(stateErr))
			}
			return fmt.Errorf("embedding batch: %w", err)
		}
		if err := p.vectors.Add(ctx, ids, vectors); err != nil {
			return err
		}
		for i, c := range batch {
			c.Embedding = vectors[i]
			c.EmbeddingStatus = models.EmbeddingEmbedded
		}
		if err := p.store.SetEmbeddingStatus(ctx, ids, models.EmbeddingEmbedded); err != nil {
			return err
		}
	}
	return nil
}

// deindex removes superseded chunks from both indices.
func (p *Pipeline) deindex(ctx context.Context, old []*models.Chunk) error {
	if len(old) == 0 {
		return nil
	}
	ids := chunkIDs(old)
	if err := p.keywords.DeleteBatch(ctx, ids); err != nil {
		return err
	}
	return p.vectors.Remove(ctx, ids)
}

func chunkIDs(chunks []*models.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

// GenerateHeadingTitles derives the heading-titles artifact from the
// sanitized artifact and stores it with a fresh hash. The sanitized
// artifact must be hash-valid.
func (p *Pipeline) GenerateHeadingTitles(ctx context.Context, docID string) (*models.Artifact, error) {
	status, err := p.artifacts.Status(ctx, docID, models.ArtifactSanitized)
	if err != nil {
		return nil, err
	}
	if !status.Exists {
		return nil, &PreconditionError{DocumentID: docID, Kind: models.ArtifactSanitized, Reason: "is missing"}
	}
	if !status.HashMatch {
		return nil, &PreconditionError{DocumentID: docID, Kind: models.ArtifactSanitized, Reason: "content hash does not match recorded hash"}
	}

	sanitized, err := p.artifacts.ReadVerified(ctx, docID, models.ArtifactSanitized)
	if err != nil {
		return nil, err
	}
	entries := extractHeadings(utils.SplitLines(string(sanitized)))

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\t%s\n", e.Line, e.Title)
	}
	return p.artifacts.Write(ctx, docID, models.ArtifactHeadingTitles, []byte(b.String()))
}

// GenerateVecSuggestions derives the vectorization-suggestions artifact from
// the heading-titles artifact. Every heading line receives the configured
// default decision; the artifact exists to be curated by hand afterwards.
func (p *Pipeline) GenerateVecSuggestions(ctx context.Context, docID string) (*models.Artifact, error) {
	status, err := p.artifacts.Status(ctx, docID, models.ArtifactHeadingTitles)
	if err != nil {
		return nil, err
	}
	if !status.Exists {
		return nil, &PreconditionError{DocumentID: docID, Kind: models.ArtifactHeadingTitles, Reason: "is missing"}
	}
	if !status.HashMatch {
		return nil, &PreconditionError{DocumentID: docID, Kind: models.ArtifactHeadingTitles, Reason: "content hash does not match recorded hash"}
	}

	titlesRaw, err := p.artifacts.ReadVerified(ctx, docID, models.ArtifactHeadingTitles)
	if err != nil {
		return nil, err
	}
	headings, err := parseHeadingTitles(titlesRaw)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, h := range headings {
		fmt.Fprintf(&b, "%d\t%s\n", h.Line, p.DefaultDecision)
	}
	return p.artifacts.Write(ctx, docID, models.ArtifactVecSuggestions, []byte(b.String()))
}

func stageState(status *models.PipelineStatus, stage models.Stage) models.StageState {
	if status == nil {
		return models.StageUnstarted
	}
	if stage == models.StageHeadingChunks {
		return status.HeadingChunks
	}
	return status.ContentChunks
}
