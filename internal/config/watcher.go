package config

import (
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// TuningWatcher watches the classifier tuning file and dispatches reloaded
// Tuning values to a callback. The watcher observes the containing directory
// rather than the file itself so editor save-by-rename still triggers.
type TuningWatcher struct {
	path     string
	callback func(Tuning)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	logger   *log.Logger
}

// NewTuningWatcher creates a watcher for the given tuning file path.
// The callback receives the freshly parsed tuning on every change.
func NewTuningWatcher(path string, callback func(Tuning)) *TuningWatcher {
	return &TuningWatcher{
		path:     path,
		callback: callback,
		done:     make(chan struct{}),
		logger:   log.WithPrefix("config"),
	}
}

// Start begins watching. Call Stop to clean up.
func (tw *TuningWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(tw.path)); err != nil {
		_ = w.Close()
		return err
	}
	tw.watcher = w

	go tw.loop()
	tw.logger.Info("watching tuning file", "path", tw.path)
	return nil
}

// Stop shuts down the watcher.
func (tw *TuningWatcher) Stop() {
	if tw.watcher != nil {
		_ = tw.watcher.Close()
	}
	<-tw.done
}

func (tw *TuningWatcher) loop() {
	defer close(tw.done)
	for {
		select {
		case evt, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Clean(evt.Name), filepath.Clean(tw.path)) {
				continue
			}
			tuning, err := LoadTuning(tw.path)
			if err != nil {
				tw.logger.Warn("tuning reload failed, keeping previous tables", "err", err)
				continue
			}
			tw.logger.Info("tuning reloaded", "path", tw.path)
			tw.callback(tuning)
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.logger.Warn("watcher error", "err", err)
		}
	}
}
