package catalog

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

// Watcher reloads the library when its backing files are edited on
// disk, so changes made with a text editor show up without a restart.
// Reloads go through Library.Reload, which never writes, so the
// watcher cannot feed itself.
type Watcher struct {
	library  *Library
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	onReload func()

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

type WatcherOption func(*Watcher)

// WithDebounce sets how long to wait after the last file event before
// reloading. Editors often produce bursts of writes per save.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOnReload registers a callback invoked after each reload.
func WithOnReload(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger.With("component", "catalog-watcher")
	}
}

// NewWatcher watches dir, the directory holding the library files, and
// starts its event loop immediately.
func NewWatcher(library *Library, dir string, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		fw.Close()
		return nil, fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		library:  library,
		watcher:  fw,
		logger:   slog.Default().With("component", "catalog-watcher"),
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(ctx)

	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isLibraryFile(event.Name) {
				continue
			}
			w.logger.Debug("library file changed", "op", event.Op.String(), "file", event.Name)
			w.scheduleReload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func isLibraryFile(name string) bool {
	base := filepath.Base(name)
	return base == filepath.Base(storyTypesKey) || base == filepath.Base(authorStylesKey)
}

// scheduleReload arms the debounce timer, replacing any pending one.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.library.Reload(ctx); err != nil {
			w.logger.Error("reloading library failed", "error", err)
			return
		}
		w.logger.Info("library reloaded from disk")
		if w.onReload != nil {
			w.onReload()
		}
	})
}

// Close stops the event loop and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
