package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

// debounceWindow is the quiet period spec §4.6 requires before a file
// change is treated as settled, absorbing editors that write via a
// truncate-then-append sequence or an atomic rename.
const debounceWindow = 200 * time.Millisecond

// Watcher watches a single configuration file for changes and invokes
// onChange, debounced, once the file has been quiet for debounceWindow.
// It watches the file's parent directory rather than the file itself so
// that editors which save by renaming a temp file into place are still
// observed (the original inode's watch would otherwise go stale).
type Watcher struct {
	path     string
	onChange func()

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher constructs a Watcher for path. The returned Watcher does
// nothing until [Watcher.Start] is called.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, mcperr.Wrap(mcperr.InternalError, "config: create fsnotify watcher", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, mcperr.Wrap(mcperr.InternalError, "config: resolve watch path", err)
	}

	return &Watcher{path: abs, onChange: onChange, fsw: fsw, done: make(chan struct{})}, nil
}

// Start begins watching the configuration file's parent directory and
// runs the debounce loop in a background goroutine.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return mcperr.Wrap(mcperr.InternalError, "config: watch directory", err)
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				if !timer.Stop() {
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.onChange()

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Stop terminates the watch loop and releases the underlying fsnotify
// watcher. Stop is idempotent.
func (w *Watcher) Stop() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.fsw.Close()
}
