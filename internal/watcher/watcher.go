// Package watcher monitors AST documents on disk and signals changes
// for `comp run --watch`. Change events are debounced so editors that
// write in bursts trigger one re-evaluation.
package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/comp-lang/comp/internal/output"
)

// defaultDebounceInterval prevents rapid successive reloads.
const defaultDebounceInterval = 100 * time.Millisecond

// Watcher emits a signal when any watched file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	changes   chan string
	stopChan  chan struct{}
	debounce  time.Duration

	mu      sync.Mutex
	running bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a watcher over the given files.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsWatcher: fw,
		changes:   make(chan string, 1),
		stopChan:  make(chan struct{}),
		debounce:  defaultDebounceInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		if err := fw.Add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Changes returns the channel receiving changed file paths. The
// channel is closed when Stop is called.
func (w *Watcher) Changes() <-chan string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		w.running = true
		go w.loop()
	}
	return w.changes
}

// Stop terminates the watch loop and closes the changes channel.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		w.fsWatcher.Close()
		return
	}
	w.running = false
	close(w.stopChan)
	w.fsWatcher.Close()
}

// loop translates raw fsnotify events into debounced change signals.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending string
	)
	fire := func() {
		select {
		case w.changes <- pending:
		default:
		}
	}
	defer close(w.changes)
	for {
		select {
		case <-w.stopChan:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = ev.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			output.Warn("watch error", "error", err)
		}
	}
}
