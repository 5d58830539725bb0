// Package cli provides CLI output utilities for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/engine"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes an engine answer to w in the given format.
func WriteAnswer(w io.Writer, answer *engine.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	default:
		writeAnswerText(w, answer)
		return nil
	}
}

func writeAnswerText(w io.Writer, answer *engine.Answer) {
	fmt.Fprintf(w, "\nQuery %s answered in %dms (%d contexts used)\n\n",
		answer.QueryID, answer.ElapsedMS, answer.ContextsUsed)
	if answer.Query != nil && len(answer.Query.Entities) > 0 {
		fmt.Fprintf(w, "Entities: %s\n", strings.Join(answer.Query.Entities, ", "))
	}
	for i, item := range answer.Contexts {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		merged := ""
		if item.Merged {
			merged = " (merged)"
		}
		fmt.Fprintf(w, "[%d] document %s lines %d-%d%s\n", i+1, item.DocumentID, item.StartLine, item.EndLine, merged)
		fmt.Fprintf(w, "%s\n", utils.Truncate(item.Text, 400))
	}
	if answer.ResponseText != "" {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "\n%s\n", answer.ResponseText)
	}
}

// WriteFileStatuses writes per-artifact file statuses to w.
func WriteFileStatuses(w io.Writer, docID string, statuses map[models.ArtifactKind]models.FileStatus, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	fmt.Fprintf(w, "Document %s:\n", docID)
	for _, kind := range models.ArtifactKinds {
		st, ok := statuses[kind]
		if !ok {
			continue
		}
		state := "ok"
		switch {
		case !st.Exists:
			state = "missing"
		case !st.HashMatch:
			state = "STALE (hash mismatch)"
		}
		fmt.Fprintf(w, "  %-26s %s\n", kind, state)
	}
	return nil
}

// StatusReport is the payload written by the status command.
type StatusReport struct {
	Documents       int64 `json:"documents"`
	Chunks          int64 `json:"chunks"`
	VectorIndexSize int   `json:"vector_index_size"`
}

// WriteStatus writes the status report to w in the given format.
func WriteStatus(w io.Writer, report *StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "Documents:         %d\n", report.Documents)
	fmt.Fprintf(w, "Chunks:            %d\n", report.Chunks)
	fmt.Fprintf(w, "Vector index size: %d\n", report.VectorIndexSize)
	return nil
}
