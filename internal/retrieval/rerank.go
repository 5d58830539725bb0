package retrieval

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/hyperjump/kotae/pkg/utils"
)

// Reranker scores candidate texts against a query. Implementations are pure
// functions over their inputs; failures surface as errors, never silent
// fallbacks.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// RerankCandidates scores candidates in batches of batchSize, truncating
// each text beyond maxLength whitespace tokens, and replaces every
// candidate's score with the reranker's. Up to concurrency batches run at
// once (values < 1 mean sequential). Batch order never affects the final
// ordering: candidates are re-sorted deterministically afterwards. A
// reranker failure surfaces as *UpstreamError.
func RerankCandidates(ctx context.Context, rr Reranker, query string, candidates []*Candidate, texts map[string]string, batchSize, maxLength, concurrency int) error {
	if rr == nil || len(candidates) == 0 {
		return nil
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		bt := make([]string, 0, end-start)
		for _, c := range candidates[start:end] {
			bt = append(bt, utils.TruncateWords(texts[c.ChunkID], maxLength))
		}
		batches = append(batches, batch{start: start, texts: bt})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, concurrency)
	for _, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()
			scores, err := rr.Rerank(ctx, query, b.texts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = &UpstreamError{Service: "reranker", Err: err}
				}
				return
			}
			for i, score := range scores {
				if b.start+i < len(candidates) {
					candidates[b.start+i].Score = score
				}
			}
		}(b)
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	SortCandidates(candidates)
	return nil
}

// OverlapReranker is a lightweight local reranker scoring candidates by
// cosine similarity of term-frequency maps between query and text. It
// stands in where no cross-encoder service is configured.
type OverlapReranker struct{}

// Rerank returns one score per text, each in [0,1].
func (OverlapReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	queryFreq := termFrequencies(query)
	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = overlapScore(queryFreq, termFrequencies(text))
	}
	return scores, nil
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		term = strings.Trim(term, ".,;:!?\"'()[]{}")
		if len(term) > 1 {
			freq[term]++
		}
	}
	return freq
}

// overlapScore is the cosine similarity of two term-frequency vectors.
func overlapScore(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, fa := range a {
		normA += float64(fa * fa)
		if fb, ok := b[term]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range b {
		normB += float64(fb * fb)
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
