// Package filewatch turns fsnotify events into debounced change callbacks.
// Gate directories and service config files are reloaded through it.
package filewatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches directories and invokes a callback once events settle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	match    func(path string) bool
	onChange func()
	debounce time.Duration
	logger   *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New watches dirs. Only events whose path satisfies match count towards a
// change; a nil match accepts everything.
func New(dirs []string, match func(path string) bool, onChange func(), opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	if match == nil {
		match = func(string) bool { return true }
	}
	w := &Watcher{
		watcher:  fw,
		match:    match,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start runs the event loop in a goroutine until ctx is done or Stop is
// called. The fsnotify handle is released when the loop exits.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop ends the event loop and releases the fsnotify handle. It is safe to
// call more than once, and after ctx cancellation.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.release()
	})
}

func (w *Watcher) release() {
	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("error closing watcher", zap.Error(err))
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.release()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || !w.match(event.Name) {
				continue
			}
			w.logger.Debug("file event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			w.onChange()
		}
	}
}
