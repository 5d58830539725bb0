package retrieval

import (
	"sort"
	"strings"
)

// Candidate is a fused retrieval candidate. Score starts as the RRF fused
// score, gains the entity boost, and is replaced entirely by the reranker
// score when a reranker is configured.
type Candidate struct {
	ChunkID     string
	Score       float64
	DenseRank   int // 1-based rank in the dense list; 0 when absent
	LexicalRank int // 1-based rank in the lexical list; 0 when absent
}

// minRank returns the lowest rank the candidate holds in any list.
func (c *Candidate) minRank() int {
	min := 0
	for _, rank := range []int{c.DenseRank, c.LexicalRank} {
		if rank > 0 && (min == 0 || rank < min) {
			min = rank
		}
	}
	return min
}

// FuseRRF merges the dense and lexical lists with reciprocal rank fusion:
// each chunk scores the sum over lists containing it of 1/(rrfK + rank),
// rank 1-based. The top topK candidates are returned sorted by fused score
// descending; ties break by lower minimum rank across lists, then chunk ID.
func FuseRRF(dense, lexical []Hit, rrfK, topK int) []*Candidate {
	byID := make(map[string]*Candidate)
	for i, hit := range dense {
		byID[hit.ChunkID] = &Candidate{ChunkID: hit.ChunkID, DenseRank: i + 1}
	}
	for i, hit := range lexical {
		c, ok := byID[hit.ChunkID]
		if !ok {
			c = &Candidate{ChunkID: hit.ChunkID}
			byID[hit.ChunkID] = c
		}
		c.LexicalRank = i + 1
	}

	candidates := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		if c.DenseRank > 0 {
			c.Score += 1.0 / float64(rrfK+c.DenseRank)
		}
		if c.LexicalRank > 0 {
			c.Score += 1.0 / float64(rrfK+c.LexicalRank)
		}
		candidates = append(candidates, c)
	}
	SortCandidates(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// SortCandidates orders candidates by score descending, then lower minimum
// rank, then chunk ID ascending. The ordering is fully deterministic.
func SortCandidates(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		ri, rj := candidates[i].minRank(), candidates[j].minRank()
		if ri != rj {
			// A rank of 0 means absent from every list; sort it last.
			if ri == 0 {
				return false
			}
			if rj == 0 {
				return true
			}
			return ri < rj
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}

// ApplyEntityBoost adds entityBoost times the number of query entities found
// as case-insensitive substrings of each candidate's chunk text. The boost
// is strictly additive and never pushes a score negative.
func ApplyEntityBoost(candidates []*Candidate, texts map[string]string, entities []string, entityBoost float64) {
	if entityBoost <= 0 || len(entities) == 0 {
		return
	}
	lowered := make([]string, 0, len(entities))
	for _, e := range entities {
		e = strings.TrimSpace(strings.ToLower(e))
		if e != "" {
			lowered = append(lowered, e)
		}
	}
	for _, c := range candidates {
		text := strings.ToLower(texts[c.ChunkID])
		if text == "" {
			continue
		}
		matches := 0
		for _, e := range lowered {
			if strings.Contains(text, e) {
				matches++
			}
		}
		if matches > 0 {
			c.Score += entityBoost * float64(matches)
		}
	}
	SortCandidates(candidates)
}
