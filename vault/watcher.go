package vault

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher emits a callback when files under a watched vault directory
// change. Watching the same path twice is a no-op, and unwatching a path
// that is not watched is not an error, so callers can treat watch handles
// as idempotent disposables.
type Watcher struct {
	vault  *FS
	onDirt func(path string)
	logger *slog.Logger

	mu      sync.Mutex
	watched map[string]*fsnotify.Watcher
}

// NewWatcher creates a watcher for a vault. onChange receives the
// vault-relative directory whose contents changed.
func NewWatcher(vault *FS, onChange func(path string), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		vault:   vault,
		onDirt:  onChange,
		logger:  logger,
		watched: make(map[string]*fsnotify.Watcher),
	}
}

// Watch begins watching a vault-relative directory. Already-watched paths
// are left alone.
func (w *Watcher) Watch(path string) error {
	abs, err := w.vault.resolve(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[path]; ok {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher for %q: %w", path, err)
	}
	if err := fsw.Add(abs); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching %q: %w", path, err)
	}
	w.watched[path] = fsw

	go w.run(path, fsw)
	return nil
}

func (w *Watcher) run(path string, fsw *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onDirt(path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("vault watcher error", "path", path, "error", err)
		}
	}
}

// Unwatch stops watching a path. Unwatching an unwatched path is a no-op.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	fsw, ok := w.watched[path]
	delete(w.watched, path)
	w.mu.Unlock()

	if ok {
		if err := fsw.Close(); err != nil {
			w.logger.Warn("closing vault watcher failed", "path", path, "error", err)
		}
	}
}

// UnwatchAll stops every watcher.
func (w *Watcher) UnwatchAll() {
	w.mu.Lock()
	watched := w.watched
	w.watched = make(map[string]*fsnotify.Watcher)
	w.mu.Unlock()

	for path, fsw := range watched {
		if err := fsw.Close(); err != nil {
			w.logger.Warn("closing vault watcher failed", "path", path, "error", err)
		}
	}
}
