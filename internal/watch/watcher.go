// Package watch turns filesystem notifications for the displayed
// directories into debounced "directory changed" events.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts such as a batch delete.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches a small set of directories, non-recursively.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	changes  chan string

	mu      sync.Mutex
	watched map[string]struct{}
}

// New creates a watcher. Call Run to start delivering changes.
func New(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger,
		changes:  make(chan string, 16),
		watched:  make(map[string]struct{}),
	}, nil
}

// Changes delivers directories whose contents changed.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Watch replaces the watched set with dirs.
func (w *Watcher) Watch(dirs ...string) {
	want := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		if d != "" {
			want[filepath.Clean(d)] = struct{}{}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for d := range w.watched {
		if _, keep := want[d]; !keep {
			_ = w.fsw.Remove(d)
			delete(w.watched, d)
		}
	}
	for d := range want {
		if _, ok := w.watched[d]; ok {
			continue
		}
		if err := w.fsw.Add(d); err != nil {
			w.logger.Debug("watch failed", "dir", d, "error", err)
			continue
		}
		w.watched[d] = struct{}{}
	}
}

// Watched returns the directories currently watched.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for d := range w.watched {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) isWatched(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[dir]
	return ok
}

// Run debounces events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Clean(event.Name)
			if parent := filepath.Dir(name); w.isWatched(parent) {
				pending[parent] = struct{}{}
			}
			if w.isWatched(name) {
				pending[name] = struct{}{}
			}
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			for dir := range pending {
				select {
				case w.changes <- dir:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			clear(pending)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
