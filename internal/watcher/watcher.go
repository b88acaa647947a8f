// Package watcher ingests PDFs dropped into an inbox directory, using fsnotify with debouncing
// so files still being copied are read once they settle.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/pdfrag/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester is what the inbox hands file contents to.
type Ingester interface {
	IngestDocument(ctx context.Context, content []byte) (*models.IngestResponse, error)
}

// ResultFunc is called after each ingestion attempt.
type ResultFunc func(path string, resp *models.IngestResponse, err error)

// Inbox watches a directory and ingests PDFs created or rewritten in it.
type Inbox struct {
	dir       string
	recursive bool
	ingester  Ingester
	onResult  ResultFunc
	debounce  time.Duration
	sem       *semaphore.Weighted
	logger    *zap.Logger // optional; when set, logs events

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	ctx      context.Context
	started  bool
	done     chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long a file must be quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithRecursive makes the inbox watch subdirectories too.
func WithRecursive(recursive bool) Option {
	return func(in *Inbox) { in.recursive = recursive }
}

// WithResultHook sets a function called with the outcome of every ingestion.
func WithResultHook(fn ResultFunc) Option {
	return func(in *Inbox) { in.onResult = fn }
}

// WithConcurrency bounds how many files are ingested at once.
func WithConcurrency(n int) Option {
	return func(in *Inbox) {
		if n > 0 {
			in.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewInbox creates an inbox over dir. The directory is created on Start if missing.
func NewInbox(dir string, ingester Ingester, opts ...Option) *Inbox {
	in := &Inbox{
		dir:      filepath.Clean(dir),
		ingester: ingester,
		debounce: defaultDebounce,
		sem:      semaphore.NewWeighted(2),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string {
	return in.dir
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return nil
	}
	if err := os.MkdirAll(in.dir, 0755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := in.addDirs(fsw, in.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	in.watcher = fsw
	in.ctx = ctx
	in.started = true
	if in.logger != nil {
		in.logger.Debug("inbox watching", zap.String("dir", in.dir), zap.Bool("recursive", in.recursive))
	}
	go in.run(ctx, fsw)
	return nil
}

func (in *Inbox) addDirs(fsw *fsnotify.Watcher, root string) error {
	if !in.recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (in *Inbox) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			in.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil && in.logger != nil {
				in.logger.Warn("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (in *Inbox) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if in.recursive && ev.Has(fsnotify.Create) {
				if err := in.addDirs(fsw, path); err != nil && in.logger != nil {
					in.logger.Warn("inbox failed to watch directory", zap.String("path", path), zap.Error(err))
				}
				in.syncDir(path)
			}
			return
		}
		if isPDF(path) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.cancel(path)
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") && !strings.HasPrefix(filepath.Base(path), ".")
}

// schedule ingests path once no event has touched it for the debounce period.
func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.started {
		return
	}
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		ctx, started := in.ctx, in.started
		if started {
			in.inflight.Add(1)
		}
		in.mu.Unlock()
		if !started {
			return
		}
		defer in.inflight.Done()
		in.ingest(ctx, path)
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) ingest(ctx context.Context, path string) {
	if err := in.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer in.sem.Release(1)

	content, err := os.ReadFile(path)
	var resp *models.IngestResponse
	if err == nil {
		resp, err = in.ingester.IngestDocument(ctx, content)
	}
	if in.logger != nil {
		if err != nil {
			in.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
		} else {
			in.logger.Info("inbox ingested",
				zap.String("path", path),
				zap.String("fingerprint", resp.Fingerprint),
				zap.Int("chunks", resp.ChunkCount),
				zap.Bool("cached", resp.Cached))
		}
	}
	if in.onResult != nil {
		in.onResult(path, resp, err)
	}
}

// SyncExisting ingests the PDFs already in the inbox. Call it after Start.
func (in *Inbox) SyncExisting() {
	in.syncDir(in.dir)
}

func (in *Inbox) syncDir(root string) {
	in.mu.Lock()
	ctx, started := in.ctx, in.started
	in.mu.Unlock()
	if !started {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !in.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isPDF(path) {
			in.ingest(ctx, path)
		}
		return nil
	})
}

// Stop stops watching and waits for ingestions already running.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return
	}
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	_ = in.watcher.Close()
	in.started = false
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.done) })
	in.inflight.Wait()
}
