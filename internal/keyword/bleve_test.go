package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	index, err := NewBleveIndex(filepath.Join(t.TempDir(), "keyword.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { index.Close() })
	return index
}

func testChunk(id, docID, text string, decision models.VectorizationDecision) *models.Chunk {
	return &models.Chunk{
		ID:         id,
		DocumentID: docID,
		Text:       text,
		Decision:   decision,
	}
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		testChunk("c1", "d1", "raft consensus uses leader election", models.DecisionVectorize),
		testChunk("c2", "d1", "paxos is another consensus protocol", models.DecisionVectorize),
		testChunk("c3", "d2", "unrelated text about cooking pasta", models.DecisionVectorize),
	}
	if err := index.IndexBatch(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	count, err := index.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 docs, got %d", count)
	}

	results, err := index.Search(ctx, "consensus", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}
	for _, r := range results {
		if r.ID == "c3" {
			t.Error("non-matching chunk returned")
		}
		if r.Score <= 0 {
			t.Errorf("hit %s has non-positive score %g", r.ID, r.Score)
		}
	}
}

func TestBleveIndex_SkipChunksExcluded(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		testChunk("keep", "d1", "leader election in raft", models.DecisionVectorize),
		testChunk("skip", "d1", "leader election appendix boilerplate", models.DecisionSkip),
	}
	if err := index.IndexBatch(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	results, err := index.Search(ctx, "leader election", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].ID != "keep" {
		t.Errorf("got %s", results[0].ID)
	}
}

func TestBleveIndex_SearchLimit(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		testChunk("c1", "d1", "alpha beta", models.DecisionVectorize),
		testChunk("c2", "d1", "alpha gamma", models.DecisionVectorize),
		testChunk("c3", "d1", "alpha delta", models.DecisionVectorize),
	}
	if err := index.IndexBatch(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	results, err := index.Search(ctx, "alpha", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("limit 2, got %d hits", len(results))
	}

	// A non-positive limit disables the lexical arm entirely.
	results, err = index.Search(ctx, "alpha", 0)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("limit 0 must return nil, got %d hits", len(results))
	}
}

func TestBleveIndex_SearchDeterministic(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	// Identical texts produce identical scores, so ordering falls back to ID.
	chunks := []*models.Chunk{
		testChunk("z-chunk", "d1", "identical words here", models.DecisionVectorize),
		testChunk("a-chunk", "d1", "identical words here", models.DecisionVectorize),
	}
	if err := index.IndexBatch(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		results, err := index.Search(ctx, "identical words", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 hits, got %d", len(results))
		}
		if results[0].ID != "a-chunk" || results[1].ID != "z-chunk" {
			t.Errorf("run %d: got %s, %s", i, results[0].ID, results[1].ID)
		}
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		testChunk("c1", "d1", "keyword search test", models.DecisionVectorize),
		testChunk("c2", "d1", "keyword search test again", models.DecisionVectorize),
	}
	if err := index.IndexBatch(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if err := index.Delete(ctx, "c1"); err != nil {
		t.Fatal(err)
	}

	results, err := index.Search(ctx, "keyword", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "c2" {
		t.Errorf("got %+v", results)
	}

	if err := index.DeleteBatch(ctx, []string{"c2"}); err != nil {
		t.Fatal(err)
	}
	count, _ := index.DocCount()
	if count != 0 {
		t.Errorf("expected empty index, got %d docs", count)
	}
}

func TestBleveIndex_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ctx := context.Background()

	index, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := index.Index(ctx, testChunk("c1", "d1", "persistent chunk", models.DecisionVectorize)); err != nil {
		t.Fatal(err)
	}
	if err := index.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	results, err := reopened.Search(ctx, "persistent", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "c1" {
		t.Errorf("got %+v", results)
	}
}
