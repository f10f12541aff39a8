package keyboard

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Loader holds the active configuration snapshot and reloads it when the
// document changes. A document that fails to parse never replaces the
// active snapshot.
type Loader struct {
	path     string
	opts     []ParseOption
	logger   *slog.Logger
	debounce time.Duration

	current atomic.Pointer[Configuration]

	mu       sync.Mutex
	onChange []func(*Configuration)
	watcher  *fsnotify.Watcher
	timer    *time.Timer

	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error
	done    chan struct{}
}

// NewLoader creates a loader for path. Current returns the defaults until
// the first successful Load.
func NewLoader(path string, opts ...ParseOption) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		path:     path,
		opts:     opts,
		logger:   slog.Default().With("component", "keyboard"),
		debounce: 100 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
		errChan:  make(chan error, 1),
	}
	l.current.Store(Default())
	return l
}

// SetLogger replaces the loader's logger.
func (l *Loader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Load parses the document and activates it. On failure the previous
// snapshot stays active and the error is returned.
func (l *Loader) Load() (*Configuration, error) {
	cfg, err := Load(l.path, l.opts...)
	if err != nil {
		return l.current.Load(), err
	}
	l.current.Store(cfg)
	return cfg, nil
}

// Current returns the active snapshot.
func (l *Loader) Current() *Configuration {
	return l.current.Load()
}

// OnChange registers a callback invoked after each successful reload.
func (l *Loader) OnChange(cb func(*Configuration)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors reports reload failures. Errors are dropped while one is pending.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch reloads the document whenever it is written, created or renamed into place.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.watchLoop(watcher, l.done)
	return nil
}

func (l *Loader) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	name := filepath.Base(l.path)
	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			l.mu.Lock()
			if l.timer != nil {
				l.timer.Stop()
			}
			l.timer = time.AfterFunc(l.debounce, l.reload)
			l.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}

	cfg, err := Load(l.path, l.opts...)
	if err != nil {
		l.logger.Warn("keyboard reload rejected, keeping previous configuration",
			"path", l.path, "error", err)
		l.report(fmt.Errorf("reload keyboard: %w", err))
		return
	}

	l.current.Store(cfg)
	l.logger.Info("keyboard configuration reloaded", "path", l.path, "layouts", len(cfg.Keyboards))

	l.mu.Lock()
	callbacks := slices.Clone(l.onChange)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// Close stops watching and waits for the watch loop to exit.
func (l *Loader) Close() error {
	l.cancel()

	l.mu.Lock()
	watcher, done := l.watcher, l.done
	l.watcher = nil
	if l.timer != nil {
		l.timer.Stop()
	}
	l.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}
