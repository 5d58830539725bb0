package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// HeadingEntry is one parsed line of the heading-titles artifact.
type HeadingEntry struct {
	Line  int // 1-based line number into the sanitized artifact
	Title string
}

// parseHeadingTitles parses the heading-titles artifact. Each non-empty line
// is "lineNo<TAB>title". Entries are returned sorted by line number.
func parseHeadingTitles(content []byte) ([]HeadingEntry, error) {
	var entries []HeadingEntry
	for i, line := range utils.SplitLines(string(content)) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		no, rest, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("heading titles line %d: missing tab separator", i+1)
		}
		n, err := strconv.Atoi(strings.TrimSpace(no))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("heading titles line %d: bad line number %q", i+1, no)
		}
		entries = append(entries, HeadingEntry{Line: n, Title: strings.TrimSpace(rest)})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Line < entries[b].Line })
	return entries, nil
}

// parseDecisions parses the vectorization-suggestions artifact. Each
// non-empty line is "lineNo<TAB>VECTORIZE|SKIP". Heading lines absent from
// the artifact are resolved later via decisionFor.
func parseDecisions(content []byte) (map[int]models.VectorizationDecision, error) {
	decisions := make(map[int]models.VectorizationDecision)
	for i, line := range utils.SplitLines(string(content)) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		no, rest, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("vectorization suggestions line %d: missing tab separator", i+1)
		}
		n, err := strconv.Atoi(strings.TrimSpace(no))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("vectorization suggestions line %d: bad line number %q", i+1, no)
		}
		d := models.VectorizationDecision(strings.TrimSpace(rest))
		switch d {
		case models.DecisionVectorize, models.DecisionSkip:
		default:
			return nil, fmt.Errorf("vectorization suggestions line %d: unknown decision %q", i+1, rest)
		}
		decisions[n] = d
	}
	return decisions, nil
}

// decisionFor resolves the decision for a heading line, applying the
// configured default when the suggestions artifact has no entry.
func decisionFor(decisions map[int]models.VectorizationDecision, line int, fallback models.VectorizationDecision) models.VectorizationDecision {
	if d, ok := decisions[line]; ok {
		return d
	}
	return fallback
}

// extractHeadings scans sanitized markdown lines for ATX headings and
// returns one entry per heading line. Used to generate the heading-titles
// artifact when no external generator supplies one.
func extractHeadings(lines []string) []HeadingEntry {
	var entries []HeadingEntry
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if title == "" {
			continue
		}
		entries = append(entries, HeadingEntry{Line: i + 1, Title: title})
	}
	return entries
}

// splitParagraphs splits a span of lines into paragraph-bounded blocks.
// Each block is a run of non-blank lines; returned ranges are 0-based
// offsets into lines.
func splitParagraphs(lines []string) [][2]int {
	var blocks [][2]int
	start := -1
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if blank {
			if start >= 0 {
				blocks = append(blocks, [2]int{start, i - 1})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		blocks = append(blocks, [2]int{start, len(lines) - 1})
	}
	return blocks
}
