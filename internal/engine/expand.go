package engine

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/kotae/internal/augment"
	"github.com/hyperjump/kotae/internal/models"
)

var phrasePattern = regexp.MustCompile(`["']([^"']+)["']`)

// expandQuery builds the query row for a question: expanded query forms,
// extracted entities, a coarse intent label, and (when a generator is
// available) a hypothetical answer used as an additional dense-search input.
// Generator failures degrade to the heuristic expansion; the hyde answer is
// an enrichment, not a required collaborator.
func expandQuery(ctx context.Context, g augment.Generator, text string) *models.Query {
	q := &models.Query{
		OriginalQuery: text,
		Entities:      extractEntities(text),
		Intent:        classifyIntent(text),
	}
	q.ExpandedQueries = []string{text}
	if stripped := stripQuestionWords(text); stripped != "" && stripped != text {
		q.ExpandedQueries = append(q.ExpandedQueries, stripped)
	}
	if g != nil {
		prompt := "Write one short paragraph that would plausibly answer the question below. " +
			"Do not mention that it is hypothetical.\n\nQuestion: " + text
		if answer, err := g.Generate(ctx, prompt); err == nil {
			q.HydeAnswer = strings.TrimSpace(answer)
			if q.HydeAnswer != "" {
				q.ExpandedQueries = append(q.ExpandedQueries, q.HydeAnswer)
			}
		}
	}
	return q
}

// extractEntities pulls quoted phrases and capitalized word runs out of the
// query text. Results are deduplicated, preserving first appearance.
func extractEntities(text string) []string {
	var entities []string
	seen := make(map[string]bool)
	add := func(e string) {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e != "" && !seen[key] {
			seen[key] = true
			entities = append(entities, e)
		}
	}

	for _, m := range phrasePattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	remaining := phrasePattern.ReplaceAllString(text, " ")

	words := strings.Fields(remaining)
	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = nil
		}
	}
	for i, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" {
			flush()
			continue
		}
		r := []rune(trimmed)
		// Leading sentence words are capitalized by convention, not entity-hood.
		if unicode.IsUpper(r[0]) && i > 0 {
			run = append(run, trimmed)
		} else {
			flush()
		}
	}
	flush()
	return entities
}

func classifyIntent(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(lower, "who "), strings.HasPrefix(lower, "when "), strings.HasPrefix(lower, "where "):
		return "lookup"
	case strings.HasPrefix(lower, "summarize"), strings.HasPrefix(lower, "describe"), strings.HasPrefix(lower, "explain"):
		return "summarize"
	case strings.HasSuffix(lower, "?"), strings.HasPrefix(lower, "what "), strings.HasPrefix(lower, "how "), strings.HasPrefix(lower, "why "):
		return "question"
	default:
		return "search"
	}
}

var questionWords = map[string]bool{
	"what": true, "how": true, "why": true, "who": true, "when": true,
	"where": true, "which": true, "is": true, "are": true, "does": true,
	"do": true, "the": true, "a": true, "an": true,
}

// stripQuestionWords returns the query with leading interrogative filler
// removed, as a keyword-friendly expansion.
func stripQuestionWords(text string) string {
	words := strings.Fields(strings.TrimSuffix(strings.TrimSpace(text), "?"))
	start := 0
	for start < len(words) && questionWords[strings.ToLower(words[start])] {
		start++
	}
	return strings.Join(words[start:], " ")
}
