package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// DefaultDebounceDelay is the quiet period after the last file event before
// the configuration is reloaded.
const DefaultDebounceDelay = 100 * time.Millisecond

// ReloadCallback receives the previous and the newly loaded configuration.
type ReloadCallback func(previous, current *CatalogConfig)

// ErrorCallback receives reload and watch errors.
type ErrorCallback func(error)

// Watcher reloads the configuration file when it changes on disk. Only
// configurations that load and validate are delivered, and rewrites that
// leave the content unchanged are skipped.
type Watcher struct {
	path     string
	loader   *Loader
	fs       *fsnotify.Watcher
	onReload ReloadCallback
	onError  ErrorCallback
	logger   observability.Logger
	debounce time.Duration

	current atomic.Pointer[CatalogConfig]

	// applyMu serializes reloads and guards digest.
	applyMu sync.Mutex
	digest  [sha256.Size]byte

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	trigger chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the quiet period before a reload.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = delay }
}

// WithLogger sets the watcher logger.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithErrorCallback sets the callback for reload and watch errors.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) { w.onError = callback }
}

// WithLoader replaces the loader used for reloads.
func WithLoader(loader *Loader) WatcherOption {
	return func(w *Watcher) { w.loader = loader }
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, callback ReloadCallback, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		loader:   NewLoader(),
		fs:       fs,
		onReload: callback,
		logger:   observability.NopLogger(),
		debounce: DefaultDebounceDelay,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the current configuration and watches the file until ctx is
// done or Stop is called. The parent directory is watched so that editors
// that replace the file are noticed. Calling Start again is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()
	if w.done != nil || w.closed {
		return nil
	}

	cfg, digest, err := w.read()
	if err != nil {
		return err
	}
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.applyMu.Lock()
	w.digest = digest
	w.applyMu.Unlock()
	w.current.Store(cfg)

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)

	w.logger.Info("watching configuration file", observability.String("path", w.path))
	return nil
}

// Stop ends the watch loop and releases the file watcher.
func (w *Watcher) Stop() error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.fs.Close()
}

// Current returns the last configuration that loaded and validated, or
// nil before the first load.
func (w *Watcher) Current() *CatalogConfig {
	return w.current.Load()
}

// ForceReload loads the file now, even if its content has not changed.
func (w *Watcher) ForceReload() error {
	_, err := w.apply(true)
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file changed",
				observability.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.fire)
			} else {
				timer.Reset(w.debounce)
			}

		case <-w.trigger:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.report("config watcher error", err)
		}
	}
}

func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	changed, err := w.apply(false)
	switch {
	case err != nil:
		GetMetrics().recordReload(reloadFailure)
		w.report("configuration reload failed", err)
	case !changed:
		GetMetrics().recordReload(reloadUnchanged)
		w.logger.Debug("configuration content unchanged")
	default:
		GetMetrics().recordReload(reloadSuccess)
		w.logger.Info("configuration reloaded", observability.String("path", w.path))
	}
}

// apply reads the file and hands a valid configuration to the callback.
// It reports whether a new configuration was delivered.
func (w *Watcher) apply(force bool) (bool, error) {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()

	cfg, digest, err := w.read()
	if err != nil {
		return false, err
	}
	if !force && digest == w.digest {
		return false, nil
	}
	w.digest = digest

	previous := w.current.Swap(cfg)
	if w.onReload != nil {
		w.onReload(previous, cfg)
	}
	return true, nil
}

func (w *Watcher) read() (*CatalogConfig, [sha256.Size]byte, error) {
	var digest [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, digest, fmt.Errorf("read config file %s: %w", w.path, err)
	}
	cfg, err := w.loader.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, digest, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, digest, err
	}
	return cfg, sha256.Sum256(data), nil
}

func (w *Watcher) report(msg string, err error) {
	w.logger.Error(msg, observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}
