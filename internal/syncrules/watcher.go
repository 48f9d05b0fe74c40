package syncrules

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Provider hands out the active rule config and allows it to be swapped
// without touching dispatch code.
type Provider struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Provider) Swap(cfg *Config) {
	if cfg == nil {
		return
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// Watcher reloads the rule file into a Provider whenever it changes on disk.
type Watcher struct {
	path     string
	provider *Provider
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// WatchConfig starts watching path. Editors typically replace the file via
// rename, so the parent directory is watched and events are filtered by name.
func WatchConfig(path string, provider *Provider) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" || provider == nil {
		return nil, nil
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	w := &Watcher{
		path:     path,
		provider: provider,
		watcher:  fsWatcher,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := LoadConfig(w.path)
			if err != nil {
				slog.Error("sync rules reload failed, keeping previous rules", "path", w.path, "err", err)
				continue
			}
			w.provider.Swap(cfg)
			slog.Info("sync rules reloaded", "path", w.path, "rules", len(cfg.Rules))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("sync rules watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() { close(w.done) })
	return w.watcher.Close()
}
