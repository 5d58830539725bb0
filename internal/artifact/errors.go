package artifact

import "github.com/hyperjump/kotae/internal/models"

// HashMismatchError reports that an artifact's live content diverged from
// the hash recorded when it was written. It is surfaced as a blocking
// condition and never auto-corrected.
type HashMismatchError struct {
	DocumentID string
	Kind       models.ArtifactKind
	Path       string
	Recorded   string
	Current    string
}

func (e *HashMismatchError) Error() string {
	return "artifact " + string(e.Kind) + " for document " + e.DocumentID +
		" has changed since it was recorded (path " + e.Path + ")"
}
