// Package watcher keeps the document corpus in sync with watched directories.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and ingests or removes documents as files
// appear, change, and disappear. File paths map to stable document IDs, so a
// rewritten file replaces its previous document.
type Watcher struct {
	ingestor   *ingest.Ingestor
	roots      []string
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for watch events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the write-settling delay before a changed file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over roots. extensions filters which files are
// ingested (empty means all); recursive includes subdirectories.
func NewWatcher(ing *ingest.Ingestor, roots, extensions []string, recursive bool, opts ...Option) *Watcher {
	w := &Watcher{
		ingestor:   ing,
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once watches are registered; events are
// handled on a background goroutine until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching directories",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
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
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(ctx, path)
			return
		}
		if w.matchExtension(path) {
			w.scheduleIngest(ctx, path)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matchExtension(path) {
			w.remove(ctx, path)
		}
	}
}

// handleNewDirectory registers watches for a directory that appeared after
// Start and ingests whatever it already contains.
func (w *Watcher) handleNewDirectory(ctx context.Context, dir string) {
	w.mu.Lock()
	fsw := w.fsw
	recursive := w.recursive
	w.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.syncDirectory(ctx, dir)
}

// scheduleIngest ingests path after the debounce window, so a file being
// written in several bursts is processed once.
func (w *Watcher) scheduleIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingestFile(ctx, path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	result, err := w.ingestor.IngestFile(ctx, path)
	if err != nil {
		w.logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("ingested watched file",
		zap.String("path", path),
		zap.String("document_id", result.DocumentID),
		zap.Int("segments", result.SegmentCount))
}

func (w *Watcher) remove(ctx context.Context, path string) {
	err := w.ingestor.DeleteFile(ctx, path)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			w.logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	w.logger.Info("removed document for deleted file", zap.String("path", path))
}

func (w *Watcher) watchRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	if !w.recursive {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

// SyncExistingFiles ingests every matching file already present under the
// watched roots. Call after Start to pick up files that predate the watch.
func (w *Watcher) SyncExistingFiles(ctx context.Context) {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		w.syncDirectory(ctx, root)
	}
}

func (w *Watcher) syncDirectory(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !w.recursive && filepath.Dir(path) != filepath.Clean(root) {
			return nil
		}
		if w.matchExtension(path) {
			w.ingestFile(ctx, path)
		}
		return nil
	})
}

// Stop stops watching and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
