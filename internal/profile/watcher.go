package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher triggers a reload when profile files change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	isDir    bool
	debounce time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches path, which may be a profile file or a directory of them.
// A single file is watched through its parent directory so that editors that
// replace the file on save are still seen.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("profile watcher: stat %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("profile watcher: create: %w", err)
	}

	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("profile watcher: watch %s: %w", dir, err)
	}

	return &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		isDir:    info.IsDir(),
		debounce: debounce,
		logger:   logger.With("component", "profile_watcher"),
	}, nil
}

// Watch blocks, calling onReload after relevant changes settle, until ctx is
// done or the watcher is closed. Reload errors are logged and watching continues.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.logger.Info("watching profiles", "path", w.path, "debounce_ms", w.debounce.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.stopTimer()
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("profile file event", "path", event.Name, "op", event.Op.String())
			w.schedule(func() {
				if err := onReload(); err != nil {
					w.logger.Error("profile reload failed", "err", err)
					return
				}
				w.logger.Info("profiles reloaded", "path", w.path)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stopTimer()
				return nil
			}
			w.logger.Error("profile watcher error", "err", err)
		}
	}
}

// Close stops the underlying fsnotify watcher, which ends Watch.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.isDir {
		return HasProfileExtension(event.Name)
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) schedule(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, fn)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
