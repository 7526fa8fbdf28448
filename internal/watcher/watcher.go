// Package watcher consumes a spool directory of parser-output payloads.
// New *.json files are picked up via fsnotify with a polling sweep as
// fallback, debounced until the writer has finished, ingested, and moved to
// done/ or failed/.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/anishks07/SupaQuery/internal/ingest"
)

const (
	// DoneDir and FailedDir are created under the spool directory.
	DoneDir   = "done"
	FailedDir = "failed"

	// DefaultSettleWindow is how long a payload file must be quiet before
	// it is considered fully written.
	DefaultSettleWindow = 500 * time.Millisecond
	// DefaultPollInterval is the fallback sweep interval catching events
	// fsnotify missed.
	DefaultPollInterval = 5 * time.Second
)

// Ingestor is the slice of the ingest package the watcher drives.
type Ingestor interface {
	IngestPayload(ctx context.Context, data []byte) (*ingest.Result, error)
}

// Options configures the spool watcher.
type Options struct {
	// SettleWindow overrides DefaultSettleWindow when positive.
	SettleWindow time.Duration
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// SpoolWatcher watches one flat directory for payload files.
type SpoolWatcher struct {
	dir      string
	ingestor Ingestor
	settle   time.Duration
	poll     time.Duration
	logger   *slog.Logger

	mu sync.Mutex
	// pending maps a payload path to the time of its last write event.
	pending map[string]time.Time
}

// New prepares the spool directory (creating it and its done/ and failed/
// subdirectories) and returns the watcher. Watching starts with Run.
func New(dir string, ingestor Ingestor, opts Options) (*SpoolWatcher, error) {
	for _, d := range []string{dir, filepath.Join(dir, DoneDir), filepath.Join(dir, FailedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	if opts.SettleWindow <= 0 {
		opts.SettleWindow = DefaultSettleWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SpoolWatcher{
		dir:      dir,
		ingestor: ingestor,
		settle:   opts.SettleWindow,
		poll:     opts.PollInterval,
		logger:   opts.Logger,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled. Payloads already in the spool when
// Run starts are processed first.
func (w *SpoolWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// No fsnotify backend on this platform; polling still works.
		w.logger.Warn("fsnotify unavailable, relying on polling sweeps", "error", err)
	} else {
		defer fsw.Close()
		if err := fsw.Add(w.dir); err != nil {
			w.logger.Warn("watch registration failed, relying on polling sweeps", "error", err)
		}
	}

	w.sweep()
	w.logger.Info("watching spool directory", "dir", w.dir)

	settleTicker := time.NewTicker(w.settle)
	defer settleTicker.Stop()
	pollTicker := time.NewTicker(w.poll)
	defer pollTicker.Stop()

	var fsEvents chan fsnotify.Event
	var fsErrors chan error
	if fsw != nil {
		fsEvents = fsw.Events
		fsErrors = fsw.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
				w.mark(ev.Name)
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.logger.Warn("watch error", "error", err)
		case <-settleTicker.C:
			w.processSettled(ctx)
		case <-pollTicker.C:
			w.sweep()
		}
	}
}

// mark records a write event for a payload file.
func (w *SpoolWatcher) mark(path string) {
	if !isPayload(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// sweep marks every payload currently in the spool, catching files written
// while the watcher was down or events fsnotify dropped.
func (w *SpoolWatcher) sweep() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("spool sweep failed", "error", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !isPayload(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if _, ok := w.pending[path]; !ok {
			w.pending[path] = time.Now()
		}
	}
}

// processSettled ingests every pending payload whose last event is older
// than the settle window.
func (w *SpoolWatcher) processSettled(ctx context.Context) {
	now := time.Now()
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

func (w *SpoolWatcher) process(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		w.logger.Warn("payload unreadable", "path", path, "error", err)
		w.moveTo(path, FailedDir)
		return
	}

	res, err := w.ingestor.IngestPayload(ctx, data)
	if err != nil {
		w.logger.Warn("payload rejected", "path", path, "error", err)
		w.moveTo(path, FailedDir)
		return
	}
	w.logger.Info("payload ingested",
		"path", path, "doc_id", res.DocID, "chunks", res.Chunks)
	w.moveTo(path, DoneDir)
}

// moveTo relocates a settled payload, suffixing the name when the target
// already exists from an earlier run.
func (w *SpoolWatcher) moveTo(path, subdir string) {
	base := filepath.Base(path)
	target := filepath.Join(w.dir, subdir, base)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(w.dir, subdir,
			time.Now().UTC().Format("20060102T150405")+"_"+base)
	}
	if err := os.Rename(path, target); err != nil {
		w.logger.Warn("payload move failed", "path", path, "error", err)
	}
}

func isPayload(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
