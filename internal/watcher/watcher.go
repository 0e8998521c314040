// Package watcher observes a local drop directory and uploads files as they
// appear or change, using the same operation pipeline the interactive
// commands go through. Remote deletions are never derived from local
// removals: the watcher only ever pushes content.
package watcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// settleDelay is how long a file must be quiet after its last write event
	// before it is uploaded, so half-written files are not pushed.
	settleDelay = 2 * time.Second

	// uploadsPerSecond throttles the upload rate so a bulk drop into the
	// watched directory does not hammer the service.
	uploadsPerSecond = 1
	uploadBurst      = 4
)

// skippedSuffixes lists file extensions that are never uploaded: partial
// downloads and editor temporaries.
var skippedSuffixes = []string{".partial", ".tmp", ".swp", ".crdownload"}

// Uploader is the slice of the operation coordinator the watcher needs.
type Uploader interface {
	Upload(ctx context.Context, name string, src io.Reader) error
}

// Watcher uploads files dropped into one directory. It does not recurse
// into subdirectories.
type Watcher struct {
	dir     string
	coord   Uploader
	logger  *slog.Logger
	limiter *rate.Limiter
	settle  time.Duration

	// pending maps file paths to their settle timers; only the event loop
	// goroutine touches it.
	pending map[string]*time.Timer
	ready   chan string
}

// New creates a watcher for dir, uploading through coord.
func New(dir string, coord Uploader, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		dir:     dir,
		coord:   coord,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(uploadsPerSecond), uploadBurst),
		settle:  settleDelay,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string),
	}
}

// Run watches the directory until ctx is canceled. Files already present at
// start are uploaded first, then changes are followed live. The directory
// scan happens before any goroutine starts, so an unreadable directory fails
// fast without leaving loops behind.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: creating filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watcher: watching %s: %w", w.dir, err)
	}

	initial, err := w.listExisting()
	if err != nil {
		return err
	}

	w.logger.Info("watching directory", slog.String("dir", w.dir))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.eventLoop(gctx, fsw)
	})

	g.Go(func() error {
		return w.uploadLoop(gctx)
	})

	g.Go(func() error {
		w.queueInitial(gctx, initial)
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// listExisting returns the paths of regular files already present in the
// directory, minus anything shouldSkip filters.
func (w *Watcher) listExisting() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: reading %s: %w", w.dir, err)
	}

	var paths []string

	for _, entry := range entries {
		if entry.IsDir() || shouldSkip(entry.Name()) {
			continue
		}

		paths = append(paths, filepath.Join(w.dir, entry.Name()))
	}

	return paths, nil
}

// queueInitial feeds the pre-existing files to the upload loop.
func (w *Watcher) queueInitial(ctx context.Context, paths []string) {
	for _, path := range paths {
		select {
		case w.ready <- path:
		case <-ctx.Done():
			return
		}
	}
}

// eventLoop turns raw fsnotify events into settled upload candidates.
func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			w.handleEvent(ctx, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent restarts the settle timer for created or written files.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	name := filepath.Base(ev.Name)
	if shouldSkip(name) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return
	}

	path := ev.Name

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}

	w.pending[path] = time.AfterFunc(w.settle, func() {
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

// uploadLoop drains settled files and uploads them, rate-limited.
func (w *Watcher) uploadLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case path := <-w.ready:
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}

			w.uploadOne(ctx, path)
		}
	}
}

// uploadOne pushes one settled file. Failures are logged and leave the
// per-scope error visible; the watcher keeps running.
func (w *Watcher) uploadOne(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		// The file may have been removed between settling and upload.
		w.logger.Debug("skipping vanished file",
			slog.String("path", path), slog.String("error", err.Error()))

		return
	}
	defer f.Close()

	name := filepath.Base(path)

	if err := w.coord.Upload(ctx, name, f); err != nil {
		w.logger.Warn("watched upload failed",
			slog.String("name", name), slog.String("error", err.Error()))

		return
	}

	w.logger.Info("watched upload complete", slog.String("name", name))
}

// shouldSkip filters hidden files and unsafe temporaries.
func shouldSkip(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}

	lower := strings.ToLower(name)
	for _, suffix := range skippedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return false
}
