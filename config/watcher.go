package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a config file for changes and reloads it.
type Watcher struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
}

// NewWatcher loads the config at path and starts watching it for changes.
// onChange is invoked with each successfully reloaded config.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		config:   cfg,
		watcher:  fsWatcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	// Watch the directory, not the file: editors replace files on save.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.watch()
	return w, nil
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.path)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("failed to reload config",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config after reload", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	w.config = cfg
	w.mu.Unlock()

	slog.Info("config reloaded", slog.String("path", w.path))

	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops watching and cleans up.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
