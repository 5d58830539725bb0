// Package consolidate merges adjacent retrieved chunks into coherent spans.
//
// Chunks from the same document whose line ranges are close enough are
// grouped transitively into clusters. A cluster whose selected chunks cover
// enough of the merged span collapses into one consolidated item; otherwise
// its chunks are kept separate but ordered contiguously. Output preserves
// document order and is never re-ranked by relevance.
package consolidate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Item is one consolidated context passage. StartLine and EndLine cover the
// selected chunks; with enrichment enabled, Text may carry extra context
// lines beyond that span.
type Item struct {
	DocumentID string   `json:"document_id"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Text       string   `json:"text"`
	ChunkIDs   []string `json:"chunk_ids"`
	Merged     bool     `json:"merged"`
}

// SourceReader reads a document's sanitized text, failing on hash mismatch.
// Satisfied by *artifact.Store.
type SourceReader interface {
	ReadVerified(ctx context.Context, docID string, kind models.ArtifactKind) ([]byte, error)
}

// Consolidator merges and deduplicates selected chunks.
type Consolidator struct {
	source SourceReader
}

// NewConsolidator creates a consolidator. source may be nil when enrichment
// is never enabled.
func NewConsolidator(source SourceReader) *Consolidator {
	return &Consolidator{source: source}
}

// Consolidate groups the selected chunks into clusters and collapses each
// cluster whose coverage meets the threshold. Items shorter than
// MinContentLength characters are dropped after merging. The relative
// document order of surviving items is preserved.
func (c *Consolidator) Consolidate(ctx context.Context, chunks []*models.Chunk, cfg models.ConsolidationConfig) ([]Item, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	// Documents in order of first appearance in the input.
	var docOrder []string
	byDoc := make(map[string][]*models.Chunk)
	for _, ch := range chunks {
		if _, ok := byDoc[ch.DocumentID]; !ok {
			docOrder = append(docOrder, ch.DocumentID)
		}
		byDoc[ch.DocumentID] = append(byDoc[ch.DocumentID], ch)
	}

	var out []Item
	for _, docID := range docOrder {
		docChunks := byDoc[docID]
		sort.SliceStable(docChunks, func(i, j int) bool {
			if docChunks[i].StartLine != docChunks[j].StartLine {
				return docChunks[i].StartLine < docChunks[j].StartLine
			}
			if docChunks[i].EndLine != docChunks[j].EndLine {
				return docChunks[i].EndLine < docChunks[j].EndLine
			}
			return docChunks[i].ID < docChunks[j].ID
		})
		for _, cluster := range clusterChunks(docChunks, cfg.LineGap) {
			items, err := c.resolveCluster(ctx, docID, cluster, cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
	}

	// Hard floor, applied after merging.
	if cfg.MinContentLength > 0 {
		kept := out[:0]
		for _, item := range out {
			if len(item.Text) >= cfg.MinContentLength {
				kept = append(kept, item)
			}
		}
		out = kept
	}
	return out, nil
}

// clusterChunks groups sorted chunks transitively. Two chunks are mergeable
// when they overlap, are adjacent, or the gap between their line ranges is
// within lineGap.
func clusterChunks(sorted []*models.Chunk, lineGap int) [][]*models.Chunk {
	var clusters [][]*models.Chunk
	var current []*models.Chunk
	maxEnd := 0
	for _, ch := range sorted {
		if len(current) == 0 {
			current = []*models.Chunk{ch}
			maxEnd = ch.EndLine
			continue
		}
		if mergeable(maxEnd, ch.StartLine, lineGap) {
			current = append(current, ch)
			if ch.EndLine > maxEnd {
				maxEnd = ch.EndLine
			}
			continue
		}
		clusters = append(clusters, current)
		current = []*models.Chunk{ch}
		maxEnd = ch.EndLine
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

// mergeable reports whether a chunk starting at start can join a cluster
// ending at end. Overlap and adjacency always merge; otherwise the line gap
// must be within lineGap.
func mergeable(end, start, lineGap int) bool {
	if start <= end+1 {
		return true
	}
	return start-end <= lineGap
}

// resolveCluster collapses a cluster into one item when coverage meets the
// threshold, otherwise keeps its chunks as separate items ordered by line.
func (c *Consolidator) resolveCluster(ctx context.Context, docID string, cluster []*models.Chunk, cfg models.ConsolidationConfig) ([]Item, error) {
	unionStart, unionEnd := cluster[0].StartLine, cluster[0].EndLine
	ids := make([]string, len(cluster))
	for i, ch := range cluster {
		ids[i] = ch.ID
		if ch.StartLine < unionStart {
			unionStart = ch.StartLine
		}
		if ch.EndLine > unionEnd {
			unionEnd = ch.EndLine
		}
	}

	if len(cluster) == 1 && !cfg.EnrichFromMD {
		ch := cluster[0]
		return []Item{{
			DocumentID: docID,
			StartLine:  ch.StartLine,
			EndLine:    ch.EndLine,
			Text:       ch.Text,
			ChunkIDs:   []string{ch.ID},
		}}, nil
	}

	var coverage float64
	var spanText string
	if cfg.EnrichFromMD && c.source != nil {
		data, err := c.source.ReadVerified(ctx, docID, models.ArtifactSanitized)
		if err != nil {
			return nil, fmt.Errorf("enrich from sanitized source: %w", err)
		}
		lines := utils.SplitLines(string(data))
		winStart := unionStart - cfg.EnrichLinesAbove
		if winStart < 1 {
			winStart = 1
		}
		winEnd := unionEnd + cfg.EnrichLinesBelow
		if winEnd > len(lines) {
			winEnd = len(lines)
		}
		coverage, spanText = charCoverage(lines, cluster, winStart, winEnd)
	} else {
		coverage = lineCoverage(cluster, unionStart, unionEnd)
		spanText = joinClusterText(cluster)
	}

	if coverage >= cfg.CoverageThreshold {
		// The item's span stays the selected union; the enrich window only
		// widens the text and the coverage denominator. Consolidating the
		// item again therefore reproduces the same span and text.
		return []Item{{
			DocumentID: docID,
			StartLine:  unionStart,
			EndLine:    unionEnd,
			Text:       spanText,
			ChunkIDs:   ids,
			Merged:     len(cluster) > 1,
		}}, nil
	}

	items := make([]Item, 0, len(cluster))
	for _, ch := range cluster {
		items = append(items, Item{
			DocumentID: docID,
			StartLine:  ch.StartLine,
			EndLine:    ch.EndLine,
			Text:       ch.Text,
			ChunkIDs:   []string{ch.ID},
		})
	}
	return items, nil
}

// charCoverage computes the character share of the window's live text covered
// by the cluster's selected line ranges, together with the window text.
func charCoverage(lines []string, cluster []*models.Chunk, winStart, winEnd int) (float64, string) {
	covered := make(map[int]bool)
	for _, ch := range cluster {
		for line := ch.StartLine; line <= ch.EndLine; line++ {
			if line >= winStart && line <= winEnd {
				covered[line] = true
			}
		}
	}
	var coveredChars, spanChars int
	var span []string
	for line := winStart; line <= winEnd && line-1 < len(lines); line++ {
		text := lines[line-1]
		span = append(span, text)
		spanChars += len(text)
		if covered[line] {
			coveredChars += len(text)
		}
	}
	spanText := strings.TrimSpace(strings.Join(span, "\n"))
	if spanChars == 0 {
		return 0, spanText
	}
	return float64(coveredChars) / float64(spanChars), spanText
}

// lineCoverage is the line share of the merged range covered by the
// cluster's chunks, used when live-text enrichment is disabled.
func lineCoverage(cluster []*models.Chunk, unionStart, unionEnd int) float64 {
	covered := make(map[int]bool)
	for _, ch := range cluster {
		for line := ch.StartLine; line <= ch.EndLine; line++ {
			covered[line] = true
		}
	}
	total := unionEnd - unionStart + 1
	if total <= 0 {
		return 0
	}
	return float64(len(covered)) / float64(total)
}

// joinClusterText concatenates cluster chunk texts in line order,
// deduplicating fully-contained ranges.
func joinClusterText(cluster []*models.Chunk) string {
	var parts []string
	maxEnd := 0
	for _, ch := range cluster {
		if ch.EndLine <= maxEnd {
			continue // fully contained in an earlier chunk
		}
		parts = append(parts, ch.Text)
		maxEnd = ch.EndLine
	}
	return strings.Join(parts, "\n")
}
