// Package retrieval runs hybrid (dense + lexical) search over chunks and
// fuses, boosts, reranks, and diversifies the results.
package retrieval

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Hit is a single retrieval hit: a chunk ID with a non-negative raw score.
type Hit struct {
	ChunkID string
	Score   float64
}

// ChunkSource looks up chunk rows for filtering and downstream stages.
type ChunkSource interface {
	GetChunksByIDs(ctx context.Context, ids []string) ([]*models.Chunk, error)
}

// overFetchFactor over-requests from each index so that word/char filters do
// not leave the final list short of the configured limit.
const overFetchFactor = 3

// Retriever runs dense and lexical search independently.
type Retriever struct {
	chunks   ChunkSource
	vectors  vector.Index
	keywords keyword.ChunkIndex
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewRetriever creates a retriever with the given dependencies. logger may
// be nil.
func NewRetriever(chunks ChunkSource, vectors vector.Index, keywords keyword.ChunkIndex, embedder embedding.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		chunks:   chunks,
		vectors:  vectors,
		keywords: keywords,
		embedder: embedder,
		logger:   logger,
	}
}

// Retrieve runs dense and lexical search concurrently and returns both
// ranked lists. A limit of 0 disables the corresponding search entirely.
// Dense hits are restricted to embedded chunks; lexical hits to
// VECTORIZE-decision chunks. Both exclude chunks below the configured word
// and character floors (0 disables a floor). queryEmbedding may be nil, in
// which case the query text is embedded here; an embedding failure surfaces
// as *UpstreamError.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, queryEmbedding []float32, cfg models.RetrievalConfig) (dense, lexical []Hit, err error) {
	var (
		wg      sync.WaitGroup
		errChan = make(chan error, 2)
	)

	if cfg.DenseLimit > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, derr := r.denseSearch(ctx, queryText, queryEmbedding, cfg)
			if derr != nil {
				errChan <- derr
				return
			}
			dense = hits
		}()
	}

	if cfg.LexicalLimit > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, lerr := r.lexicalSearch(ctx, queryText, cfg)
			if lerr != nil {
				errChan <- lerr
				return
			}
			lexical = hits
		}()
	}

	wg.Wait()
	close(errChan)
	for e := range errChan {
		if e != nil {
			return nil, nil, e
		}
	}

	r.logger.Debug("hybrid retrieval",
		zap.Int("dense_hits", len(dense)),
		zap.Int("lexical_hits", len(lexical)),
	)
	return dense, lexical, nil
}

func (r *Retriever) denseSearch(ctx context.Context, queryText string, queryEmbedding []float32, cfg models.RetrievalConfig) ([]Hit, error) {
	if queryEmbedding == nil {
		emb, err := r.embedder.Embed(ctx, queryText)
		if err != nil {
			return nil, &UpstreamError{Service: "embedding", Err: err}
		}
		queryEmbedding = emb
	}
	results, err := r.vectors.Search(ctx, queryEmbedding, cfg.DenseLimit*overFetchFactor)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	byID, err := r.chunkMap(ctx, ids)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, cfg.DenseLimit)
	for _, res := range results {
		ch, ok := byID[res.ID]
		if !ok || ch.EmbeddingStatus != models.EmbeddingEmbedded {
			continue
		}
		if !passesFloors(ch.Text, cfg) {
			continue
		}
		hits = append(hits, Hit{ChunkID: res.ID, Score: math.Max(0, res.Score)})
		if len(hits) == cfg.DenseLimit {
			break
		}
	}
	return hits, nil
}

func (r *Retriever) lexicalSearch(ctx context.Context, queryText string, cfg models.RetrievalConfig) ([]Hit, error) {
	results, err := r.keywords.Search(ctx, queryText, cfg.LexicalLimit*overFetchFactor)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	byID, err := r.chunkMap(ctx, ids)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, cfg.LexicalLimit)
	for _, res := range results {
		ch, ok := byID[res.ID]
		if !ok || ch.Decision != models.DecisionVectorize {
			continue
		}
		if !passesFloors(ch.Text, cfg) {
			continue
		}
		hits = append(hits, Hit{ChunkID: res.ID, Score: math.Max(0, res.Score)})
		if len(hits) == cfg.LexicalLimit {
			break
		}
	}
	return hits, nil
}

func (r *Retriever) chunkMap(ctx context.Context, ids []string) (map[string]*models.Chunk, error) {
	chunks, err := r.chunks.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}
	return byID, nil
}

func passesFloors(text string, cfg models.RetrievalConfig) bool {
	if cfg.MinWordCount > 0 && utils.WordCount(text) < cfg.MinWordCount {
		return false
	}
	if cfg.MinCharCount > 0 && len(text) < cfg.MinCharCount {
		return false
	}
	return true
}
