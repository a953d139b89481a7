package config

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Getter provides access to the current config.
type Getter interface {
	Config() *Config
}

// Static wraps a config for use without hot-reloading (e.g., in tests).
type Static struct {
	cfg *Config
}

// NewStatic creates a Getter that always returns the same config.
func NewStatic(cfg *Config) *Static {
	return &Static{cfg: cfg}
}

// Config returns the static config.
func (s *Static) Config() *Config {
	return s.cfg
}

// Watcher watches the config file for changes and reloads provider
// keys without a restart. Transport bind and TTL settings are read at
// startup only; the running values are preserved even if the file
// changes.
//
// Not restart-safe: once Stop is called, create a new Watcher.
type Watcher struct {
	path     string
	mu       sync.RWMutex
	cfg      *Config
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher seeded with cfg. onChange, if non-nil,
// is invoked after each successful reload.
func NewWatcher(path string, cfg *Config, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		cfg:      cfg,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
}

// Config returns the current config.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Start begins watching the config file. A watcher with no path is a
// no-op (e.g., env-only deployments).
func (w *Watcher) Start() error {
	if w.path == "" {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	// Watch the directory, not the file: editors that write
	// atomically replace the file with delete + create.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		w.watcher = nil
		return err
	}

	go w.watchLoop(filepath.Base(w.path))
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) watchLoop(configFile string) {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != configFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		log.Printf("config reload failed, keeping previous config: %v", err)
		return
	}

	w.mu.Lock()
	// Restart-required settings keep their running values.
	cfg.Host = w.cfg.Host
	cfg.Port = w.cfg.Port
	cfg.ReviewTTLSecs = w.cfg.ReviewTTLSecs
	w.cfg = cfg
	w.mu.Unlock()

	log.Printf("config reloaded from %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
