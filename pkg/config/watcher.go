package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file and invokes a callback with the
// freshly loaded configuration when it changes. Editors often replace files
// via rename, so the parent directory is watched and events are debounced to
// avoid reload storms.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		logger:   logger.With("component", "config.watcher"),
	}
}

// Watch blocks until ctx is cancelled, calling onReload with each
// successfully reloaded configuration. A file that fails to load or validate
// is logged and skipped; the previous configuration stays in effect.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("config watcher started", "path", w.path)

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", "error", err)

		case <-pending:
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Error("config reload failed, keeping previous configuration",
					"path", w.path,
					"error", err,
				)
				continue
			}
			w.logger.Info("configuration reloaded", "path", w.path)
			onReload(cfg)
		}
	}
}
