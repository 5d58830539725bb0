// Package artifact manages hash-verified file artifacts of documents.
//
// Every artifact write recomputes a sha256 content hash and records it next
// to the file path. Validity is re-derived on every read by comparing the
// live file hash against the recorded one; a mismatch is advisory, never
// destructive: downstream stages are blocked but nothing is deleted.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/models"
)

// Records persists artifact metadata (path and recorded content hash).
type Records interface {
	UpsertArtifact(ctx context.Context, a *models.Artifact) error
	GetArtifact(ctx context.Context, docID string, kind models.ArtifactKind) (*models.Artifact, error)
}

// Store is a file-backed artifact store rooted at a directory. Files live
// at <root>/<docID>/<kind>.txt.
type Store struct {
	root    string
	records Records
}

// NewStore creates a store rooted at root. The directory is created if it
// does not exist.
func NewStore(root string, records Records) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root, records: records}, nil
}

// Root returns the artifact root directory.
func (s *Store) Root() string {
	return s.root
}

// PathFor returns the file path for a document's artifact of the given kind.
func (s *Store) PathFor(docID string, kind models.ArtifactKind) string {
	return filepath.Join(s.root, docID, string(kind)+".txt")
}

// HashBytes returns the hex-encoded sha256 of content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Write stores content for (docID, kind), recomputes its hash, and upserts
// the artifact record. Any previous content for the same kind is replaced.
func (s *Store) Write(ctx context.Context, docID string, kind models.ArtifactKind, content []byte) (*models.Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown artifact kind: %s", kind)
	}
	path := s.PathFor(docID, kind)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	a := &models.Artifact{
		DocumentID:  docID,
		Kind:        kind,
		Path:        path,
		ContentHash: HashBytes(content),
	}
	if err := s.records.UpsertArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("record artifact: %w", err)
	}
	return a, nil
}

// Read returns the raw file content for (docID, kind) without hash
// verification. Use ReadVerified when staleness must block the caller.
func (s *Store) Read(ctx context.Context, docID string, kind models.ArtifactKind) ([]byte, error) {
	rec, err := s.records.GetArtifact(ctx, docID, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// ReadVerified returns the file content, failing with *HashMismatchError
// when the live content no longer matches the recorded hash.
func (s *Store) ReadVerified(ctx context.Context, docID string, kind models.ArtifactKind) ([]byte, error) {
	rec, err := s.records.GetArtifact(ctx, docID, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if got := HashBytes(data); got != rec.ContentHash {
		return nil, &HashMismatchError{
			DocumentID: docID,
			Kind:       kind,
			Path:       rec.Path,
			Recorded:   rec.ContentHash,
			Current:    got,
		}
	}
	return data, nil
}

// Status checks (docID, kind) on disk against the recorded hash. A missing
// record or missing file yields Exists=false; HashMatch is recomputed from
// the live file content on every call.
func (s *Store) Status(ctx context.Context, docID string, kind models.ArtifactKind) (models.FileStatus, error) {
	rec, err := s.records.GetArtifact(ctx, docID, kind)
	if err != nil {
		return models.FileStatus{Exists: false, Path: s.PathFor(docID, kind)}, nil
	}
	status := models.FileStatus{Path: rec.Path, Hash: rec.ContentHash}
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return status, nil
		}
		return status, fmt.Errorf("read artifact: %w", err)
	}
	status.Exists = true
	status.HashMatch = HashBytes(data) == rec.ContentHash
	return status, nil
}

// StatusAll returns the FileStatus of every artifact kind for a document.
func (s *Store) StatusAll(ctx context.Context, docID string) (map[models.ArtifactKind]models.FileStatus, error) {
	out := make(map[models.ArtifactKind]models.FileStatus, len(models.ArtifactKinds))
	for _, kind := range models.ArtifactKinds {
		st, err := s.Status(ctx, docID, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = st
	}
	return out, nil
}
