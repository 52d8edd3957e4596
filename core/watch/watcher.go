// Package watch keeps the index current by re-running the pipeline when the
// library directory changes on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nick-seward/vibe-dj-sub000/logger"
)

// Runner triggers one indexing run.
type Runner func(ctx context.Context) error

// Watcher monitors a library root recursively and schedules a re-index after
// a quiet period, so bulk copies trigger one run instead of hundreds.
type Watcher struct {
	root     string
	debounce time.Duration
	run      Runner
}

// New builds a watcher over root.
func New(root string, debounce time.Duration, run Runner) *Watcher {
	return &Watcher{root: root, debounce: debounce, run: run}
}

// Watch blocks until ctx is cancelled, re-indexing after each debounced
// burst of filesystem events.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.root); err != nil {
		return err
	}
	logger.Info("watching library", logger.String("root", w.root))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// New directories need their own watch before their contents
			// produce events.
			if event.Op.Has(fsnotify.Create) {
				if err := addRecursive(fsw, event.Name); err != nil {
					logger.Warn("failed to watch new path", logger.String("path", event.Name), logger.ErrorField(err))
				}
			}
			if !pending {
				pending = true
			} else if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("filesystem watcher error", logger.ErrorField(err))

		case <-timer.C:
			pending = false
			logger.Info("library changed, re-indexing")
			if err := w.run(ctx); err != nil {
				logger.Error("watch-triggered indexing failed", logger.ErrorField(err))
			}
		}
	}
}

// addRecursive watches path and, when it is a directory, every directory
// below it. Non-directories are ignored; fsnotify reports their events via
// the parent watch.
func addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
