package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

type fakeChunkSource struct {
	chunks map[string]*models.Chunk
}

func (f *fakeChunkSource) GetChunksByIDs(ctx context.Context, ids []string) ([]*models.Chunk, error) {
	var out []*models.Chunk
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeKeywordIndex struct {
	results []*keyword.Result
}

func (f *fakeKeywordIndex) Index(ctx context.Context, chunk *models.Chunk) error       { return nil }
func (f *fakeKeywordIndex) IndexBatch(ctx context.Context, chunks []*models.Chunk) error { return nil }
func (f *fakeKeywordIndex) Delete(ctx context.Context, id string) error                { return nil }
func (f *fakeKeywordIndex) DeleteBatch(ctx context.Context, ids []string) error        { return nil }
func (f *fakeKeywordIndex) DocCount() (uint64, error)                                  { return uint64(len(f.results)), nil }
func (f *fakeKeywordIndex) Close() error                                               { return nil }
func (f *fakeKeywordIndex) Search(ctx context.Context, query string, limit int) ([]*keyword.Result, error) {
	if limit > len(f.results) {
		limit = len(f.results)
	}
	return f.results[:limit], nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) Dimensions() int { return 8 }
func (failingEmbedder) Close() error    { return nil }

func testChunk(id, text string, status models.EmbeddingStatus, decision models.VectorizationDecision) *models.Chunk {
	return &models.Chunk{ID: id, DocumentID: "doc", Kind: models.ChunkKindContent, Text: text, Decision: decision, EmbeddingStatus: status}
}

func newTestRetriever(t *testing.T, chunks map[string]*models.Chunk, lexical []*keyword.Result) (*Retriever, *embedding.MockEmbedder, vector.Index) {
	t.Helper()
	embedder := embedding.NewMockEmbedder(16)
	index, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for id, c := range chunks {
		if c.EmbeddingStatus == models.EmbeddingEmbedded {
			vec, err := embedder.Embed(ctx, c.Text)
			if err != nil {
				t.Fatal(err)
			}
			if err := index.Add(ctx, []string{id}, [][]float32{vec}); err != nil {
				t.Fatal(err)
			}
		}
	}
	r := NewRetriever(&fakeChunkSource{chunks: chunks}, index, &fakeKeywordIndex{results: lexical}, embedder, nil)
	return r, embedder, index
}

func TestRetrieve_BothArms(t *testing.T) {
	longText := "several words of meaningful chunk content for searching"
	chunks := map[string]*models.Chunk{
		"a": testChunk("a", longText+" alpha", models.EmbeddingEmbedded, models.DecisionVectorize),
		"b": testChunk("b", longText+" beta", models.EmbeddingEmbedded, models.DecisionVectorize),
	}
	lexical := []*keyword.Result{{ID: "b", Score: 2.0}, {ID: "a", Score: 1.0}}
	r, _, _ := newTestRetriever(t, chunks, lexical)

	cfg := models.DefaultConfigGroups().Retrieval
	dense, lex, err := r.Retrieve(context.Background(), "meaningful content", nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(dense) == 0 {
		t.Error("expected dense hits")
	}
	if len(lex) != 2 || lex[0].ChunkID != "b" {
		t.Errorf("expected lexical hits [b, a], got %+v", lex)
	}
	for _, h := range append(dense, lex...) {
		if h.Score < 0 {
			t.Errorf("scores must be non-negative, got %g for %s", h.Score, h.ChunkID)
		}
	}
}

func TestRetrieve_ZeroLimitDisablesArm(t *testing.T) {
	longText := "several words of meaningful chunk content for searching"
	chunks := map[string]*models.Chunk{
		"a": testChunk("a", longText, models.EmbeddingEmbedded, models.DecisionVectorize),
	}
	lexical := []*keyword.Result{{ID: "a", Score: 1.0}}
	r, _, _ := newTestRetriever(t, chunks, lexical)

	cfg := models.DefaultConfigGroups().Retrieval
	cfg.DenseLimit = 0
	dense, lex, err := r.Retrieve(context.Background(), "anything", nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(dense) != 0 {
		t.Errorf("dense arm disabled, got %d hits", len(dense))
	}
	if len(lex) == 0 {
		t.Error("lexical arm should still run")
	}

	cfg = models.DefaultConfigGroups().Retrieval
	cfg.LexicalLimit = 0
	dense, lex, err = r.Retrieve(context.Background(), "anything", nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(lex) != 0 {
		t.Errorf("lexical arm disabled, got %d hits", len(lex))
	}
	if len(dense) == 0 {
		t.Error("dense arm should still run")
	}
}

func TestRetrieve_FiltersUnembeddedAndSkipped(t *testing.T) {
	longText := "several words of meaningful chunk content for searching"
	chunks := map[string]*models.Chunk{
		"queued": testChunk("queued", longText, models.EmbeddingQueued, models.DecisionVectorize),
		"skip":   testChunk("skip", longText, models.EmbeddingEmbedded, models.DecisionSkip),
	}
	lexical := []*keyword.Result{{ID: "queued", Score: 1.0}, {ID: "skip", Score: 0.9}}
	r, embedder, index := newTestRetriever(t, chunks, lexical)

	// Force the queued chunk into the vector index anyway; the status filter
	// must still exclude it from dense results.
	ctx := context.Background()
	vec, _ := embedder.Embed(ctx, longText)
	if err := index.Add(ctx, []string{"queued"}, [][]float32{vec}); err != nil {
		t.Fatal(err)
	}

	cfg := models.DefaultConfigGroups().Retrieval
	dense, lex, err := r.Retrieve(ctx, "meaningful content", nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range dense {
		if h.ChunkID == "queued" {
			t.Error("dense results must exclude unembedded chunks")
		}
	}
	for _, h := range lex {
		if h.ChunkID == "skip" {
			t.Error("lexical results must exclude SKIP chunks")
		}
	}
}

func TestRetrieve_WordAndCharFloors(t *testing.T) {
	chunks := map[string]*models.Chunk{
		"tiny": testChunk("tiny", "too short", models.EmbeddingEmbedded, models.DecisionVectorize),
		"big":  testChunk("big", "this chunk has comfortably more than five words in it", models.EmbeddingEmbedded, models.DecisionVectorize),
	}
	lexical := []*keyword.Result{{ID: "tiny", Score: 2.0}, {ID: "big", Score: 1.0}}
	r, _, _ := newTestRetriever(t, chunks, lexical)

	cfg := models.DefaultConfigGroups().Retrieval
	cfg.MinWordCount = 5
	cfg.MinCharCount = 20
	dense, lex, err := r.Retrieve(context.Background(), "chunk words", nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range append(dense, lex...) {
		if h.ChunkID == "tiny" {
			t.Error("floors must filter the short chunk from both arms")
		}
	}
	if len(lex) != 1 || lex[0].ChunkID != "big" {
		t.Errorf("expected only big lexically, got %+v", lex)
	}
}

func TestRetrieve_EmbeddingFailureIsUpstream(t *testing.T) {
	index, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(&fakeChunkSource{chunks: nil}, index, &fakeKeywordIndex{}, failingEmbedder{}, nil)

	cfg := models.DefaultConfigGroups().Retrieval
	_, _, err = r.Retrieve(context.Background(), "q", nil, cfg)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Service != "embedding" {
		t.Errorf("got service %s", upstream.Service)
	}

	// A caller-provided embedding bypasses the embedder entirely.
	if _, _, err := r.Retrieve(context.Background(), "q", make([]float32, 8), cfg); err != nil {
		t.Errorf("expected no error with provided embedding, got %v", err)
	}
}
