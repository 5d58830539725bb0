package pipeline

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// PreconditionError reports that a stage cannot run because a required
// artifact is missing or its on-disk content no longer matches the recorded
// hash. The failing artifact is named so callers can re-ingest it.
type PreconditionError struct {
	DocumentID string
	Kind       models.ArtifactKind
	Reason     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("pipeline precondition failed for document %s: artifact %q %s",
		e.DocumentID, e.Kind, e.Reason)
}
