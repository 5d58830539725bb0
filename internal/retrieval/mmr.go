package retrieval

import (
	"strings"

	"github.com/hyperjump/kotae/internal/vector"
)

// SelectMMR picks topN candidates by maximal marginal relevance: each round
// selects the unselected candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// lambda=1 degenerates to pure relevance ranking, lambda=0 to pure
// diversity. Similarity is cosine over chunk embeddings when both sides
// have one, token Jaccard otherwise. Selection is deterministic: candidates
// are scanned in their (already deterministic) sorted order and ties keep
// the earlier candidate.
func SelectMMR(candidates []*Candidate, embeddings map[string][]float32, texts map[string]string, lambda float64, topN int) []*Candidate {
	if topN <= 0 || len(candidates) == 0 {
		return nil
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}

	tokens := make(map[string]map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := embeddings[c.ChunkID]; !ok {
			tokens[c.ChunkID] = tokenSet(texts[c.ChunkID])
		}
	}

	similarity := func(a, b *Candidate) float64 {
		ea, okA := embeddings[a.ChunkID]
		eb, okB := embeddings[b.ChunkID]
		if okA && okB {
			return vector.CosineSimilarity(ea, eb)
		}
		ta := tokens[a.ChunkID]
		if ta == nil {
			ta = tokenSet(texts[a.ChunkID])
		}
		tb := tokens[b.ChunkID]
		if tb == nil {
			tb = tokenSet(texts[b.ChunkID])
		}
		return jaccard(ta, tb)
	}

	selected := make([]*Candidate, 0, topN)
	remaining := make([]*Candidate, len(candidates))
	copy(remaining, candidates)

	for len(selected) < topN {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if sim := similarity(c, s); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*c.Score - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, term := range strings.Fields(strings.ToLower(text)) {
		term = strings.Trim(term, ".,;:!?\"'()[]{}")
		if len(term) > 1 {
			set[term] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for term := range a {
		if _, ok := b[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
