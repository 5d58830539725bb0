// Package watcher watches the artifact root with fsnotify and flags
// staleness when artifact files change on disk. It is advisory: mismatches
// are reported, never corrected.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// StaleFunc is called when an artifact's live hash no longer matches, or
// the file is gone. status.Exists is false when the file was removed.
type StaleFunc func(docID string, kind models.ArtifactKind, status models.FileStatus)

// Watcher watches the artifact root directory tree. Artifact files live at
// <root>/<docID>/<kind>.txt; events elsewhere under the root are ignored.
type Watcher struct {
	artifacts *artifact.Store
	onStale   StaleFunc
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	logger    *zap.Logger

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// NewWatcher creates a staleness watcher over the artifact store's root.
func NewWatcher(artifacts *artifact.Store, onStale StaleFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		artifacts:   artifacts,
		onStale:     onStale,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Per-document subdirectories created later are picked up automatically.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	root := w.artifacts.Root()
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return err
	}
	entries, err := os.ReadDir(root)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				if err := watcher.Add(filepath.Join(root, e.Name())); err != nil {
					w.logger.Debug("watcher failed to add directory",
						zap.String("path", filepath.Join(root, e.Name())), zap.Error(err))
				}
			}
		}
	}
	w.logger.Debug("artifact watcher starting", zap.String("root", root))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
		for _, t := range w.debounceMap {
			t.Stop()
		}
		w.debounceMap = make(map[string]*time.Timer)
		w.mu.Unlock()
	})
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			// New document directory under the root.
			w.mu.Lock()
			watcher := w.watcher
			w.mu.Unlock()
			if watcher != nil {
				if err := watcher.Add(path); err != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			return
		}
		w.debounceCheck(path)
	case ev.Op.Has(fsnotify.Write):
		w.debounceCheck(path)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		w.checkPath(path)
	}
}

func (w *Watcher) debounceCheck(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.checkPath(path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// checkPath maps a filesystem path back to (docID, kind) and re-evaluates
// the file status. Only stale or missing artifacts trigger the callback.
func (w *Watcher) checkPath(path string) {
	docID, kind, ok := w.parsePath(path)
	if !ok {
		return
	}
	status, err := w.artifacts.Status(context.Background(), docID, kind)
	if err != nil {
		w.logger.Debug("watcher status check failed", zap.String("path", path), zap.Error(err))
		return
	}
	if status.Hash == "" {
		// No recorded hash for this artifact; nothing to compare against.
		return
	}
	if status.Exists && status.HashMatch {
		return
	}
	w.logger.Warn("artifact is stale",
		zap.String("document_id", docID),
		zap.String("kind", string(kind)),
		zap.Bool("exists", status.Exists),
		zap.Bool("hash_match", status.HashMatch),
	)
	if w.onStale != nil {
		w.onStale(docID, kind, status)
	}
}

// parsePath extracts (docID, kind) from <root>/<docID>/<kind>.txt.
func (w *Watcher) parsePath(path string) (string, models.ArtifactKind, bool) {
	rel, err := filepath.Rel(w.artifacts.Root(), filepath.Clean(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 {
		return "", "", false
	}
	kind := models.ArtifactKind(strings.TrimSuffix(parts[1], ".txt"))
	if !kind.Valid() {
		return "", "", false
	}
	return parts[0], kind, true
}
