package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher watches a config file for changes and reloads it
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	config   *Config
	handlers []func(*Config)
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads path and prepares to watch it. The containing directory
// is watched so that editors saving via rename are picked up.
func NewWatcher(path string) (*Watcher, error) {
	path = filepath.Clean(path)

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		path:    path,
		watcher: w,
		config:  cfg,
		done:    make(chan struct{}),
	}, nil
}

// Start starts watching for config file changes
func (w *Watcher) Start() {
	go w.watch()
}

// Stop stops the config watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// OnReload registers a handler to be called when config is reloaded
func (w *Watcher) OnReload(handler func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Get returns the current config
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// Reload on write or create (some editors do atomic saves via rename)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep running with the previous config.
		log.WithError(err).Warnf("failed to reload config from %s", w.path)
		return
	}

	w.mu.Lock()
	w.config = cfg
	handlers := make([]func(*Config), len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	log.Infof("config reloaded from %s", w.path)

	for _, handler := range handlers {
		handler(cfg)
	}
}
