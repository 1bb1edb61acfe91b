// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// fsnotify-based config file watcher with debounced reload dispatch.
// Changes reach the ConfigStore listeners; running acceptors are not
// reconfigured in place, new transport parameters apply to endpoints
// created after the reload.

package control

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches a config file and reloads it into a ConfigStore on
// change. Events are debounced: editors that write via rename or in
// several chunks trigger a single reload.
type Watcher struct {
	path     string
	store    *ConfigStore
	debounce time.Duration
	log      *logrus.Entry

	fsw      *fsnotify.Watcher
	stopOnce sync.Once
	stop     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration (default 100ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatcherLogger sets the logger for watcher diagnostics.
func WithWatcherLogger(log *logrus.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log.WithField("config", w.path) }
}

// NewWatcher starts watching path and merging it into store on change.
func NewWatcher(path string, store *ConfigStore, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		store:    store,
		debounce: 100 * time.Millisecond,
		log:      logrus.WithField("config", path),
		fsw:      fsw,
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, w.reload)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	if err := w.store.LoadFile(w.path); err != nil {
		w.log.WithError(err).Warn("config reload failed")
		return
	}
	w.log.Debug("config reloaded")
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.stopOnce.Do(func() { close(w.stop) })
	return w.fsw.Close()
}
