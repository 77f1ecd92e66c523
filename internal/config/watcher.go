package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"go-antiraid/internal/logging"
)

// Watcher reloads the config file into a Store when it changes on disk.
type Watcher struct {
	path     string
	store    *Store
	debounce time.Duration
	onReload func(*Config)
}

func NewWatcher(path string, store *Store) *Watcher {
	return &Watcher{
		path:     path,
		store:    store,
		debounce: 250 * time.Millisecond,
	}
}

// OnReload registers a callback invoked after a new config is installed.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.onReload = fn
}

// Run blocks until ctx is cancelled. The parent directory is watched so that
// editors which replace the file by rename are still picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Error("Config reload rejected, keeping previous config: %v", err)
		return
	}
	if err := w.store.Replace(cfg); err != nil {
		logging.Error("Config reload rejected, keeping previous config: %v", err)
		return
	}
	logging.Info("Config reloaded from %s", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
