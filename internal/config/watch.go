package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called with the reloaded configuration
type ChangeHandler func(cfg *Config)

// Watcher reloads a configuration file when it changes on disk
type Watcher struct {
	path          string
	debounceDelay time.Duration
	handler       ChangeHandler
	watcher       *fsnotify.Watcher

	// Debouncing state
	mu      sync.Mutex
	pending *time.Timer
	stopped bool
}

// NewWatcher creates a watcher for the config file at path. The parent
// directory is watched so that editors replacing the file are noticed.
func NewWatcher(path string, debounceDelay time.Duration, handler ChangeHandler) (*Watcher, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:          abs,
		debounceDelay: debounceDelay,
		handler:       handler,
		watcher:       fsWatcher,
	}, nil
}

// Run processes events until ctx is done, then releases the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	slog.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.debounceDelay.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// Watch runs a Watcher for path until ctx is done
func Watch(ctx context.Context, path string, debounceDelay time.Duration, handler ChangeHandler) error {
	w, err := NewWatcher(path, debounceDelay, handler)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	slog.Debug("config event detected", "event", event.Op.String())
	w.scheduleReload()
}

// scheduleReload reloads the file once events stop for the debounce delay
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	w.pending = nil
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("failed to reload config", "path", w.path, "error", err)
		return
	}
	slog.Info("config reloaded", "path", w.path)
	w.handler(cfg)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		slog.Warn("failed to close config watcher", "error", err)
	}
}
