package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ReloadFunc receives the previous and the new config together with their
// [Diff]. It runs on the watcher goroutine.
type ReloadFunc func(old, new *Config, d ConfigDiff)

// Watcher polls a config file and hot-reloads it. The file is only re-read
// after its size or modification time moved, and onChange only fires when
// the content hash changed, the file still validates and [Diff] is
// non-empty. An invalid edit is logged and the last good config stays.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ReloadFunc

	mu      sync.Mutex
	current *Config
	seen    fileStamp

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// fileStamp identifies one version of the config file.
type fileStamp struct {
	size  int64
	mtime time.Time
	sum   [sha256.Size]byte
}

func (s fileStamp) sameFile(info os.FileInfo) bool {
	return s.size == info.Size() && s.mtime.Equal(info.ModTime())
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and then polls it until [Watcher.Stop].
func NewWatcher(path string, onChange ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second, onChange: onChange}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := loadStamped(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.seen = cfg, stamp

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Go(func() { w.run(ctx) })
	return w, nil
}

// Current returns the last config that loaded and validated.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-flight reload. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	log := slog.With("path", w.path)

	info, err := os.Stat(w.path)
	if err != nil {
		log.Warn("config reload: stat failed", "err", err)
		return
	}
	w.mu.Lock()
	unchanged := w.seen.sameFile(info)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, stamp, err := loadStamped(w.path)
	if err != nil {
		log.Warn("config reload: invalid file, keeping previous config", "err", err)
		return
	}

	w.mu.Lock()
	if stamp.sum == w.seen.sum {
		w.seen = stamp
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.seen = cfg, stamp
	w.mu.Unlock()

	d := Diff(old, cfg)
	if d.Empty() {
		log.Debug("config reload: no live-reloadable change")
		return
	}
	log.Info("config reloaded", "log_level_changed", d.LogLevelChanged, "policy_changed", d.PolicyChanged)
	if len(d.RestartRequired) > 0 {
		log.Warn("config reload: restart needed to apply", "sections", d.RestartRequired)
	}
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
}

func loadStamped(path string) (*Config, fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileStamp{}, err
	}
	return cfg, fileStamp{size: info.Size(), mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
