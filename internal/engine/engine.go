// Package engine orchestrates retrieval-augmented answering: expansion,
// hybrid retrieval, fusion, diversification, consolidation, prompting, and
// result recording.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/augment"
	"github.com/hyperjump/kotae/internal/consolidate"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Engine answers queries over the chunk store. Retrieval, fusion, and
// consolidation are pure computations; independent queries may run fully in
// parallel. The active config preset is read once per invocation and
// treated as an immutable snapshot.
type Engine struct {
	store        storage.Storage
	retriever    *retrieval.Retriever
	vectors      vector.Index
	reranker     retrieval.Reranker
	consolidator *consolidate.Consolidator
	generator    augment.Generator
	// RerankConcurrency bounds concurrent reranker batches.
	RerankConcurrency int
	logger            *zap.Logger
}

// NewEngine creates an engine. reranker and generator may be nil; without a
// reranker the fused+boosted ordering stands, without a generator only
// manual response recording is available.
func NewEngine(
	store storage.Storage,
	retriever *retrieval.Retriever,
	vectors vector.Index,
	reranker retrieval.Reranker,
	consolidator *consolidate.Consolidator,
	generator augment.Generator,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:             store,
		retriever:         retriever,
		vectors:           vectors,
		reranker:          reranker,
		consolidator:      consolidator,
		generator:         generator,
		RerankConcurrency: 4,
		logger:            logger,
	}
}

// AskOptions selects the config preset and whether to call the language model.
type AskOptions struct {
	// ConfigName selects a named preset; empty uses the default preset.
	ConfigName string
	// Generate calls the language model on the assembled prompt and
	// records the response. Without it the caller receives the prompt and
	// can record a response manually.
	Generate bool
}

// Answer is the outcome of one engine invocation.
type Answer struct {
	QueryID      string             `json:"query_id"`
	Query        *models.Query      `json:"query"`
	Contexts     []consolidate.Item `json:"contexts"`
	Prompt       string             `json:"prompt"`
	ContextsUsed int                `json:"contexts_used"`
	ResponseText string             `json:"response_text,omitempty"`
	ElapsedMS    int64              `json:"elapsed_ms"`
}

// Ask runs the full retrieval flow for queryText and persists the query with
// its curated context. Fewer than the minimum context items after
// consolidation is an *storage.InsufficientContextError; nothing degraded is
// persisted or prompted.
func (e *Engine) Ask(ctx context.Context, queryText string, opts AskOptions) (*Answer, error) {
	start := time.Now()

	cfg, err := e.snapshotConfig(ctx, opts.ConfigName)
	if err != nil {
		return nil, err
	}

	query := expandQuery(ctx, e.generator, queryText)

	dense, lexical, err := e.retriever.Retrieve(ctx, queryText, nil, cfg.Config.Retrieval)
	if err != nil {
		return nil, err
	}
	if len(dense) == 0 && len(lexical) == 0 {
		return nil, &storage.InsufficientContextError{Got: 0, Min: models.MinCleanContextItems}
	}

	candidates := retrieval.FuseRRF(dense, lexical, cfg.Config.Retrieval.RRFK, cfg.Config.Retrieval.TopKRRF)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}
	chunks, err := e.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	texts := make(map[string]string, len(chunks))
	byID := make(map[string]*models.Chunk, len(chunks))
	embeddings := make(map[string][]float32, len(chunks))
	for _, ch := range chunks {
		texts[ch.ID] = ch.Text
		byID[ch.ID] = ch
		if vec, ok := e.vectors.Get(ch.ID); ok {
			embeddings[ch.ID] = vec
		}
	}

	retrieval.ApplyEntityBoost(candidates, texts, query.Entities, cfg.Config.Retrieval.EntityBoost)

	if e.reranker != nil {
		err := retrieval.RerankCandidates(ctx, e.reranker, queryText, candidates, texts,
			cfg.Config.Retrieval.RerankerBatchSize, cfg.Config.Retrieval.RerankerMaxLength, e.RerankConcurrency)
		if err != nil {
			return nil, err
		}
	}

	selected := retrieval.SelectMMR(candidates, embeddings, texts,
		cfg.Config.Retrieval.MMRLambda, cfg.Config.Retrieval.TopNFinal)

	selectedChunks := make([]*models.Chunk, 0, len(selected))
	for _, c := range selected {
		if ch, ok := byID[c.ChunkID]; ok {
			selectedChunks = append(selectedChunks, ch)
		}
	}

	items, err := e.consolidator.Consolidate(ctx, selectedChunks, cfg.Config.Consolidation)
	if err != nil {
		return nil, err
	}

	contextTexts := make([]string, len(items))
	for i, item := range items {
		contextTexts[i] = item.Text
	}
	if len(contextTexts) < models.MinCleanContextItems {
		return nil, &storage.InsufficientContextError{Got: len(contextTexts), Min: models.MinCleanContextItems}
	}

	query.CleanRetrievalContext = contextTexts
	if err := e.store.CreateQuery(ctx, query); err != nil {
		return nil, err
	}

	prompt, used := augment.BuildPrompt(queryText, contextTexts, cfg.Config.Augmentation.TopNContexts)

	answer := &Answer{
		QueryID:      query.ID,
		Query:        query,
		Contexts:     items,
		Prompt:       prompt,
		ContextsUsed: used,
	}

	if opts.Generate {
		if e.generator == nil {
			return nil, &retrieval.UpstreamError{Service: "generation", Err: errNoGenerator}
		}
		response, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, &retrieval.UpstreamError{Service: "generation", Err: err}
		}
		if err := e.store.AppendResult(ctx, &models.Result{QueryID: query.ID, ResponseText: response}); err != nil {
			return nil, err
		}
		answer.ResponseText = response
	}

	answer.ElapsedMS = time.Since(start).Milliseconds()
	e.logger.Debug("ask completed",
		zap.String("query_id", query.ID),
		zap.Int("dense_hits", len(dense)),
		zap.Int("lexical_hits", len(lexical)),
		zap.Int("candidates", len(candidates)),
		zap.Int("contexts", len(items)),
		zap.Int64("elapsed_ms", answer.ElapsedMS),
	)
	return answer, nil
}

// RecordResponse appends a manually supplied language-model response for a
// query. Prior results are never discarded.
func (e *Engine) RecordResponse(ctx context.Context, queryID, responseText string) (*models.Result, error) {
	if _, err := e.store.GetQuery(ctx, queryID); err != nil {
		return nil, err
	}
	result := &models.Result{QueryID: queryID, ResponseText: responseText}
	if err := e.store.AppendResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveCleanContext persists a user-curated context list for a query,
// enforcing the minimum-items floor. Ordering is preserved exactly.
func (e *Engine) SaveCleanContext(ctx context.Context, queryID string, items []string) error {
	return e.store.SaveCleanContext(ctx, queryID, items)
}

// snapshotConfig reads the active (or named) preset once. The returned
// value is not shared with concurrent invocations.
func (e *Engine) snapshotConfig(ctx context.Context, name string) (*models.RagConfig, error) {
	if name != "" {
		return e.store.GetRagConfigByName(ctx, name)
	}
	return e.store.GetDefaultRagConfig(ctx)
}

var errNoGenerator = errNoGeneratorType{}

type errNoGeneratorType struct{}

func (errNoGeneratorType) Error() string { return "no generator configured" }
