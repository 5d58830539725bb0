// Package models defines core data structures for documents, artifacts,
// chunks, queries, and retrieval configuration.
package models

import "time"

// Document represents a source document with bibliographic metadata.
// Metadata is immutable after ingestion; artifacts and chunks reference the
// document by ID.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Authors   string    `json:"authors,omitempty" db:"authors"`
	Year      int       `json:"year,omitempty" db:"year"`
	DocType   string    `json:"doc_type,omitempty" db:"doc_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ArtifactKind identifies one of the pipeline's file artifacts.
type ArtifactKind string

const (
	// ArtifactSanitized is the cleaned markdown text of the document.
	ArtifactSanitized ArtifactKind = "sanitized"
	// ArtifactHeadingTitles is the extracted heading index, one
	// "lineNumber<TAB>title" entry per line.
	ArtifactHeadingTitles ArtifactKind = "heading_titles"
	// ArtifactVecSuggestions is the vectorization decision list, one
	// "lineNumber<TAB>decision" entry per line.
	ArtifactVecSuggestions ArtifactKind = "vectorization_suggestions"
)

// ArtifactKinds lists all artifact kinds in pipeline order.
var ArtifactKinds = []ArtifactKind{ArtifactSanitized, ArtifactHeadingTitles, ArtifactVecSuggestions}

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactSanitized, ArtifactHeadingTitles, ArtifactVecSuggestions:
		return true
	}
	return false
}

// Artifact records a named file artifact of a document together with the
// content hash computed when the artifact was written.
type Artifact struct {
	DocumentID  string       `json:"document_id" db:"document_id"`
	Kind        ArtifactKind `json:"kind" db:"kind"`
	Path        string       `json:"path" db:"path"`
	ContentHash string       `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// FileStatus is the result of checking an artifact on disk against its
// recorded hash. HashMatch is recomputed on every read and never cached.
type FileStatus struct {
	Exists    bool   `json:"exists"`
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	HashMatch bool   `json:"hash_match"`
}
