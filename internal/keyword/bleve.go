// Package keyword provides the Bleve implementation of ChunkIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotae/internal/models"
)

// chunkFields is the document shape stored in Bleve. Only the fields needed
// for search are indexed; the chunk of record lives in SQLite.
type chunkFields struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	Decision   string `json:"decision"`
}

// BleveIndex implements ChunkIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so chunks survive restarts. If the mapping changes in
// code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	chunkMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact words
	// in queries match exact words in chunks.
	textFieldMapping.Analyzer = standard.Name
	chunkMapping.AddFieldMappingsAt("text", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	chunkMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	chunkMapping.AddFieldMappingsAt("decision", keywordFieldMapping)
	im.AddDocumentMapping("chunk", chunkMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = chunkMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a chunk by ID.
func (b *BleveIndex) Index(ctx context.Context, chunk *models.Chunk) error {
	return b.index.Index(chunk.ID, chunkFields{
		Text:       chunk.Text,
		DocumentID: chunk.DocumentID,
		Decision:   string(chunk.Decision),
	})
}

// IndexBatch indexes chunks in a single Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ID, chunkFields{
			Text:       chunk.Text,
			DocumentID: chunk.DocumentID,
			Decision:   string(chunk.Decision),
		}); err != nil {
			return err
		}
	}
	return b.index.Batch(batch)
}

// Delete removes a chunk from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DeleteBatch removes chunks in a single Bleve batch.
func (b *BleveIndex) DeleteBatch(ctx context.Context, ids []string) error {
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// Search runs a match query over chunk text restricted to VECTORIZE-decision
// chunks, returning up to limit hits. Ties are broken by chunk ID ascending
// for determinism.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	match := bleve.NewMatchQuery(query)
	match.SetField("text")
	decision := bleve.NewTermQuery(string(models.DecisionVectorize))
	decision.SetField("decision")
	conj := bleve.NewConjunctionQuery([]blevequery.Query{match, decision}...)

	search := bleve.NewSearchRequest(conj)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DocCount returns the number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
