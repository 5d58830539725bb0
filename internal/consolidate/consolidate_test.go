package consolidate

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func contentChunk(id, docID string, start, end int, text string) *models.Chunk {
	return &models.Chunk{
		ID:         id,
		DocumentID: docID,
		Kind:       models.ChunkKindContent,
		StartLine:  start,
		EndLine:    end,
		Text:       text,
		Decision:   models.DecisionVectorize,
	}
}

func plainConfig() models.ConsolidationConfig {
	return models.ConsolidationConfig{
		CoverageThreshold: 0.5,
		LineGap:           5,
		MinContentLength:  0,
		EnrichFromMD:      false,
	}
}

func TestConsolidate_LineGapScenario(t *testing.T) {
	// Spans 10-20 and 22-30: gap of 2 lines between end and next start.
	chunks := []*models.Chunk{
		contentChunk("a", "doc", 10, 20, strings.Repeat("x", 40)),
		contentChunk("b", "doc", 22, 30, strings.Repeat("y", 40)),
	}
	c := NewConsolidator(nil)

	cfg := plainConfig()
	cfg.LineGap = 5
	cfg.CoverageThreshold = 0 // force the merge decision onto clustering
	items, err := c.Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("line_gap=5 must merge into one cluster, got %d items", len(items))
	}
	if items[0].StartLine != 10 || items[0].EndLine != 30 || !items[0].Merged {
		t.Errorf("got %+v", items[0])
	}

	cfg.LineGap = 1
	items, err = c.Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("line_gap=1 must keep two items, got %d", len(items))
	}
}

func TestConsolidate_AdjacentAlwaysMerge(t *testing.T) {
	// End 20, next start 21: adjacency merges even with line_gap=0.
	chunks := []*models.Chunk{
		contentChunk("a", "doc", 10, 20, "a text"),
		contentChunk("b", "doc", 21, 30, "b text"),
	}
	cfg := plainConfig()
	cfg.LineGap = 0
	cfg.CoverageThreshold = 0
	items, err := NewConsolidator(nil).Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("adjacent chunks must merge, got %d items", len(items))
	}
}

func TestConsolidate_CoverageThresholdScenario(t *testing.T) {
	// Two chunks covering 8 of 20 lines: 40% line coverage.
	chunks := []*models.Chunk{
		contentChunk("a", "doc", 1, 4, "first part"),
		contentChunk("b", "doc", 17, 20, "second part"),
	}
	c := NewConsolidator(nil)

	cfg := plainConfig()
	cfg.LineGap = 20
	cfg.CoverageThreshold = 0.5
	items, err := c.Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("40%% coverage under a 0.5 threshold must stay split, got %d", len(items))
	}
	if items[0].Merged || items[1].Merged {
		t.Error("split items must not be marked merged")
	}

	cfg.CoverageThreshold = 0.3
	items, err = c.Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !items[0].Merged {
		t.Fatalf("40%% coverage over a 0.3 threshold must collapse, got %d items", len(items))
	}
	if items[0].StartLine != 1 || items[0].EndLine != 20 {
		t.Errorf("merged span wrong: %+v", items[0])
	}
}

func TestConsolidate_MinContentLengthFloor(t *testing.T) {
	chunks := []*models.Chunk{
		contentChunk("short", "doc", 1, 2, "tiny"),
		contentChunk("long", "doc", 50, 60, strings.Repeat("substantial content ", 10)),
	}
	cfg := plainConfig()
	cfg.MinContentLength = 80
	items, err := NewConsolidator(nil).Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ChunkIDs[0] != "long" {
		t.Fatalf("short item must be dropped after merging, got %+v", items)
	}
}

func TestConsolidate_DocumentOrderPreserved(t *testing.T) {
	// Input ordered by relevance: doc2's chunk first. Per-document output
	// follows line order; documents follow first appearance.
	chunks := []*models.Chunk{
		contentChunk("d2-late", "doc2", 90, 95, "doc2 late text"),
		contentChunk("d1", "doc1", 5, 10, "doc1 text"),
		contentChunk("d2-early", "doc2", 10, 15, "doc2 early text"),
	}
	cfg := plainConfig()
	items, err := NewConsolidator(nil).Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ChunkIDs[0] != "d2-early" || items[1].ChunkIDs[0] != "d2-late" || items[2].ChunkIDs[0] != "d1" {
		t.Errorf("order wrong: %v %v %v", items[0].ChunkIDs, items[1].ChunkIDs, items[2].ChunkIDs)
	}
}

func TestConsolidate_Idempotent(t *testing.T) {
	chunks := []*models.Chunk{
		contentChunk("a", "doc", 10, 14, "first block of selected text"),
		contentChunk("b", "doc", 15, 20, "second block of selected text"),
	}
	cfg := plainConfig()
	c := NewConsolidator(nil)

	first, err := c.Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one merged item, got %d", len(first))
	}

	// Feed the output back in as a synthetic chunk.
	again := []*models.Chunk{
		contentChunk("merged", "doc", first[0].StartLine, first[0].EndLine, first[0].Text),
	}
	second, err := c.Consolidate(context.Background(), again, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].Text != first[0].Text ||
		second[0].StartLine != first[0].StartLine || second[0].EndLine != first[0].EndLine {
		t.Errorf("consolidation must be idempotent on its own output:\nfirst %+v\nsecond %+v", first[0], second[0])
	}
}

// staticSource serves a fixed sanitized artifact for enrichment.
type staticSource struct {
	text string
}

func (s *staticSource) ReadVerified(ctx context.Context, docID string, kind models.ArtifactKind) ([]byte, error) {
	return []byte(s.text), nil
}

func TestConsolidate_EnrichFromSource(t *testing.T) {
	var lines []string
	for i := 1; i <= 30; i++ {
		lines = append(lines, strings.Repeat("line content ", 3))
	}
	source := &staticSource{text: strings.Join(lines, "\n")}

	chunks := []*models.Chunk{
		contentChunk("a", "doc", 10, 14, "stale chunk copy"),
		contentChunk("b", "doc", 15, 20, "another stale copy"),
	}
	cfg := models.ConsolidationConfig{
		CoverageThreshold: 0.5,
		LineGap:           5,
		EnrichFromMD:      true,
		EnrichLinesAbove:  2,
		EnrichLinesBelow:  2,
	}
	items, err := NewConsolidator(source).Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one merged item, got %d", len(items))
	}
	// The span stays the selected union; the text window grows by the
	// enrich margins (lines 8-22) and is re-read from the source.
	if items[0].StartLine != 10 || items[0].EndLine != 20 {
		t.Errorf("expected span 10-20, got %d-%d", items[0].StartLine, items[0].EndLine)
	}
	if strings.Contains(items[0].Text, "stale") {
		t.Error("enriched text must come from the live source, not chunk copies")
	}
	if !strings.Contains(items[0].Text, "line content") {
		t.Error("enriched text missing source content")
	}
	if got := strings.Count(items[0].Text, "\n") + 1; got != 15 {
		t.Errorf("enriched text must cover lines 8-22, got %d lines", got)
	}
}

func TestConsolidate_IdempotentWithEnrichment(t *testing.T) {
	var lines []string
	for i := 1; i <= 40; i++ {
		lines = append(lines, strings.Repeat("line content ", 3))
	}
	source := &staticSource{text: strings.Join(lines, "\n")}

	chunks := []*models.Chunk{
		contentChunk("a", "doc", 20, 25, "stale chunk copy"),
		contentChunk("b", "doc", 26, 30, "another stale copy"),
	}
	cfg := models.ConsolidationConfig{
		CoverageThreshold: 0.5,
		LineGap:           5,
		EnrichFromMD:      true,
		EnrichLinesAbove:  2,
		EnrichLinesBelow:  2,
	}
	c := NewConsolidator(source)

	first, err := c.Consolidate(context.Background(), chunks, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || !first[0].Merged {
		t.Fatalf("expected one merged item, got %+v", first)
	}

	// Feed the merged enriched item back in; the span must not keep
	// growing by the enrich margins on every pass.
	again := []*models.Chunk{
		contentChunk("merged", "doc", first[0].StartLine, first[0].EndLine, first[0].Text),
	}
	second, err := c.Consolidate(context.Background(), again, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 {
		t.Fatalf("expected one item, got %d", len(second))
	}
	if second[0].StartLine != first[0].StartLine || second[0].EndLine != first[0].EndLine {
		t.Errorf("span drifted: first %d-%d, second %d-%d",
			first[0].StartLine, first[0].EndLine, second[0].StartLine, second[0].EndLine)
	}
	if second[0].Text != first[0].Text {
		t.Error("text drifted between passes")
	}
}

func TestConsolidate_EmptyInput(t *testing.T) {
	items, err := NewConsolidator(nil).Consolidate(context.Background(), nil, plainConfig())
	if err != nil {
		t.Fatal(err)
	}
	if items != nil {
		t.Errorf("expected nil, got %+v", items)
	}
}
