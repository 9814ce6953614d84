package config

import (
	"os"
	"time"
)

// Watcher detects config file changes by modification time.
type Watcher struct {
	path    string
	modTime time.Time
}

// NewWatcher records the file's current modification time.
func NewWatcher(path string) *Watcher {
	w := &Watcher{path: path}
	w.modTime, _ = w.stat()
	return w
}

func (w *Watcher) stat() (time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Changed reports whether the file was modified since the last call.
// A file that disappears is not a change; the previous config stays in effect.
func (w *Watcher) Changed() bool {
	mt, err := w.stat()
	if err != nil || mt.Equal(w.modTime) {
		return false
	}
	w.modTime = mt
	return true
}

// Reload loads the file if it changed. It returns nil, nil when nothing changed.
func (w *Watcher) Reload() (*Config, error) {
	if !w.Changed() {
		return nil, nil
	}
	cfg, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (w *Watcher) Path() string { return w.path }
