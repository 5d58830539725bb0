// Package augment assembles consolidated context into a final prompt and
// records language-model responses.
package augment

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are a careful assistant answering questions strictly from the provided context passages.

Context passages:
%s
Question: %s

Answer using only the context above. If the context does not contain the answer, say so.`

// BuildPrompt embeds at most topN context items, in their existing order,
// into the prompt template alongside the query. It returns the prompt and
// the number of context items actually used. The caller may request fewer
// items than available, never more.
func BuildPrompt(query string, contexts []string, topN int) (string, int) {
	if topN > len(contexts) {
		topN = len(contexts)
	}
	if topN < 0 {
		topN = 0
	}
	var b strings.Builder
	for i := 0; i < topN; i++ {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(contexts[i]))
	}
	return fmt.Sprintf(promptTemplate, b.String(), query), topN
}
