package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"
)

// Watcher monitors a config file, and the catalog files it references, for
// changes and calls a callback when any of them is modified. It uses polling
// (not fsnotify) to keep dependencies minimal.
//
// The callback fires with equal old and new configs when only a catalog
// file's content changed; callers reload the catalog on every callback.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	lastMtimes []time.Time
	lastHash   [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a config file watcher. It loads the initial config
// immediately and starts polling in a background goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = snap.cfg
	w.lastHash = snap.hash
	w.lastMtimes = snap.mtimes

	go w.poll()
	return w, nil
}

// Path returns the watched config file path.
func (w *Watcher) Path() string { return w.path }

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the watched files when any modification time moved and, if
// the combined content changed and is valid, calls onChange.
func (w *Watcher) check() {
	w.mu.Lock()
	files := w.files(w.current)
	mtimes := w.lastMtimes
	w.mu.Unlock()

	current, err := statAll(files)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}
	if slices.EqualFunc(current, mtimes, time.Time.Equal) {
		return
	}

	snap, err := w.load()
	if err != nil {
		slog.Warn("config watcher: failed to load config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.hash == w.lastHash {
		// Touched but content is identical.
		w.lastMtimes = snap.mtimes
		w.mu.Unlock()
		return
	}

	old := w.current
	w.current = snap.cfg
	w.lastHash = snap.hash
	w.lastMtimes = snap.mtimes
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback can call Current.
	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
}

// files lists the config path followed by the catalog files of cfg.
func (w *Watcher) files(cfg *Config) []string {
	files := []string{w.path}
	if cfg != nil {
		files = append(files, cfg.Catalog.Files...)
	}
	return files
}

type snapshot struct {
	cfg    *Config
	hash   [sha256.Size]byte
	mtimes []time.Time
}

// load parses and validates the config file, then hashes it together with
// every catalog file it references. Any unreadable file fails the load so the
// caller keeps the previous config.
func (w *Watcher) load() (snapshot, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}

	h := sha256.New()
	h.Write(data)
	for _, f := range cfg.Catalog.Files {
		b, err := os.ReadFile(f)
		if err != nil {
			return snapshot{}, fmt.Errorf("catalog %q: %w", f, err)
		}
		h.Write([]byte{0})
		h.Write(b)
	}

	mtimes, err := statAll(w.files(cfg))
	if err != nil {
		return snapshot{}, err
	}

	snap := snapshot{cfg: cfg, mtimes: mtimes}
	h.Sum(snap.hash[:0])
	return snap, nil
}

func statAll(files []string) ([]time.Time, error) {
	out := make([]time.Time, len(files))
	for i, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, err
		}
		out[i] = info.ModTime()
	}
	return out, nil
}
