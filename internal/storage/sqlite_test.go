package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateDocument(t *testing.T, store *SQLiteStorage, id string) {
	t.Helper()
	if err := store.CreateDocument(context.Background(), &models.Document{ID: id, Title: id}); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteStorage_DocumentCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "doc1", Title: "Title", Authors: "A, B", Year: 2024, DocType: "article"}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Title" || got.Authors != "A, B" || got.Year != 2024 {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := store.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "doc1"); err == nil {
		t.Error("expected error after delete")
	}
}

func TestSQLiteStorage_ReplaceChunksSupersedes(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	mustCreateDocument(t, store, "doc1")

	first := []*models.Chunk{
		{ID: "c1", DocumentID: "doc1", Kind: models.ChunkKindContent, StartLine: 1, EndLine: 3, Text: "one", Decision: models.DecisionVectorize, EmbeddingStatus: models.EmbeddingNotQueued},
		{ID: "c2", DocumentID: "doc1", Kind: models.ChunkKindContent, StartLine: 5, EndLine: 7, Text: "two", Decision: models.DecisionSkip, EmbeddingStatus: models.EmbeddingNotQueued},
	}
	if err := store.ReplaceChunks(ctx, "doc1", models.ChunkKindContent, first); err != nil {
		t.Fatal(err)
	}

	second := []*models.Chunk{
		{ID: "c3", DocumentID: "doc1", Kind: models.ChunkKindContent, StartLine: 1, EndLine: 7, Text: "merged", Decision: models.DecisionVectorize, EmbeddingStatus: models.EmbeddingNotQueued},
	}
	if err := store.ReplaceChunks(ctx, "doc1", models.ChunkKindContent, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetChunksByDocument(ctx, "doc1", models.ChunkKindContent)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "c3" {
		t.Errorf("expected only superseding chunk, got %+v", got)
	}
	if _, err := store.GetChunk(ctx, "c1"); err == nil {
		t.Error("superseded chunk should be gone")
	}
}

func TestSQLiteStorage_ReplaceChunksKeepsOtherKind(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	mustCreateDocument(t, store, "doc1")

	heading := []*models.Chunk{{ID: "h1", DocumentID: "doc1", Kind: models.ChunkKindHeading, StartLine: 1, EndLine: 10, Text: "section", Decision: models.DecisionVectorize, EmbeddingStatus: models.EmbeddingNotQueued}}
	if err := store.ReplaceChunks(ctx, "doc1", models.ChunkKindHeading, heading); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceChunks(ctx, "doc1", models.ChunkKindContent, nil); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetChunksByDocument(ctx, "doc1", models.ChunkKindHeading)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("heading chunks must survive a content replace, got %d", len(got))
	}
}

func TestSQLiteStorage_EmbeddingStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	mustCreateDocument(t, store, "doc1")

	chunks := []*models.Chunk{
		{ID: "c1", DocumentID: "doc1", Kind: models.ChunkKindContent, Text: "a", Decision: models.DecisionVectorize, EmbeddingStatus: models.EmbeddingNotQueued},
		{ID: "c2", DocumentID: "doc1", Kind: models.ChunkKindContent, Text: "b", Decision: models.DecisionVectorize, EmbeddingStatus: models.EmbeddingNotQueued},
	}
	if err := store.ReplaceChunks(ctx, "doc1", models.ChunkKindContent, chunks); err != nil {
		t.Fatal(err)
	}
	if err := store.SetEmbeddingStatus(ctx, []string{"c1", "c2"}, models.EmbeddingEmbedded); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetChunk(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.EmbeddingStatus != models.EmbeddingEmbedded {
		t.Errorf("expected embedded, got %s", got.EmbeddingStatus)
	}
}

func TestSQLiteStorage_PipelineStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	mustCreateDocument(t, store, "doc1")

	status, err := store.GetPipelineStatus(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if status.HeadingChunks != models.StageUnstarted || status.ContentChunks != models.StageUnstarted {
		t.Errorf("new document stages must be unstarted, got %+v", status)
	}

	if err := store.SetStageState(ctx, "doc1", models.StageHeadingChunks, models.StageCompleted); err != nil {
		t.Fatal(err)
	}
	status, _ = store.GetPipelineStatus(ctx, "doc1")
	if status.HeadingChunks != models.StageCompleted {
		t.Errorf("expected completed, got %s", status.HeadingChunks)
	}
	if status.ContentChunks != models.StageUnstarted {
		t.Errorf("content stage must be untouched, got %s", status.ContentChunks)
	}
}

func TestSQLiteStorage_CleanContextFloor(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	q := &models.Query{OriginalQuery: "what is fusion"}
	if err := store.CreateQuery(ctx, q); err != nil {
		t.Fatal(err)
	}

	err := store.SaveCleanContext(ctx, q.ID, []string{"one", "two"})
	var insufficient *InsufficientContextError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientContextError, got %v", err)
	}
	if insufficient.Got != 2 || insufficient.Min != models.MinCleanContextItems {
		t.Errorf("got %+v", insufficient)
	}

	// Nothing was persisted by the rejected save.
	got, err := store.GetQuery(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.CleanRetrievalContext) != 0 {
		t.Errorf("rejected save must not persist, got %v", got.CleanRetrievalContext)
	}

	items := []string{"third", "first", "second"}
	if err := store.SaveCleanContext(ctx, q.ID, items); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetQuery(ctx, q.ID)
	for i, want := range items {
		if got.CleanRetrievalContext[i] != want {
			t.Errorf("ordering must be preserved: got %v", got.CleanRetrievalContext)
			break
		}
	}
}

func TestSQLiteStorage_ResultsAppendOnly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	q := &models.Query{OriginalQuery: "q"}
	if err := store.CreateQuery(ctx, q); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"first answer", "second answer"} {
		if err := store.AppendResult(ctx, &models.Result{QueryID: q.ID, ResponseText: text}); err != nil {
			t.Fatal(err)
		}
	}
	results, err := store.ListResults(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ResponseText != "first answer" || results[1].ResponseText != "second answer" {
		t.Errorf("results out of order: %+v", results)
	}
}

func TestSQLiteStorage_RagConfigDefaultSwap(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	a := &models.RagConfig{Name: "a", Config: models.DefaultConfigGroups()}
	if err := store.CreateRagConfig(ctx, a); err != nil {
		t.Fatal(err)
	}
	// First preset becomes the default regardless of the flag.
	got, err := store.GetDefaultRagConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "a" {
		t.Errorf("expected first preset as default, got %s", got.Name)
	}

	b := &models.RagConfig{Name: "b", Config: models.DefaultConfigGroups()}
	if err := store.CreateRagConfig(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := store.SetDefaultRagConfig(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	configs, err := store.ListRagConfigs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defaults := 0
	for _, c := range configs {
		if c.IsDefault {
			defaults++
			if c.Name != "b" {
				t.Errorf("wrong default: %s", c.Name)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("exactly one default expected, got %d", defaults)
	}
}

func TestSQLiteStorage_RagConfigRejectsOutOfBounds(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	cfg := models.DefaultConfigGroups()
	cfg.Retrieval.RRFK = 0
	err := store.CreateRagConfig(ctx, &models.RagConfig{Name: "bad", Config: cfg})
	var vErr *models.ConfigValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ConfigValidationError, got %v", err)
	}
	if _, err := store.GetRagConfigByName(ctx, "bad"); err == nil {
		t.Error("rejected config must not be persisted")
	}
}

func TestSQLiteStorage_SetDefaultUnknownID(t *testing.T) {
	store := newTestStorage(t)
	if err := store.SetDefaultRagConfig(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown config ID")
	}
}
