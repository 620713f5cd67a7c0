package grade

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces editor save patterns (truncate + write, or
// write to temp + rename) into a single reload.
const reloadDelay = 100 * time.Millisecond

// lutWatcher reloads the active LUT when its file changes on disk. It
// watches the parent directory rather than the file itself so that
// atomic-replace saves keep working.
type lutWatcher struct {
	fsw    *fsnotify.Watcher
	log    *slog.Logger
	reload func(path string)

	mu    sync.Mutex
	path  string // absolute path of the watched file, "" for none
	dir   string // directory currently added to the watcher
	timer *time.Timer

	done chan struct{}
}

func newLUTWatcher(log *slog.Logger, reload func(path string)) (*lutWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("grade: create watcher: %w", err)
	}
	w := &lutWatcher{
		fsw:    fsw,
		log:    log,
		reload: reload,
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch switches the watcher to the LUT at path. A previous watch is
// dropped; only the active LUT is hot-reloaded.
func (w *lutWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("grade: watch LUT: %w", err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if dir != w.dir {
		if w.dir != "" {
			// Ignore removal errors: the directory may be gone.
			_ = w.fsw.Remove(w.dir)
		}
		if err := w.fsw.Add(dir); err != nil {
			w.dir = ""
			w.path = ""
			return fmt.Errorf("grade: watch LUT: %w", err)
		}
		w.dir = dir
	}
	w.path = abs
	return nil
}

// Unwatch stops reacting to file events without tearing the watcher
// down, used when the pipeline reverts to the identity LUT.
func (w *lutWatcher) Unwatch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.path = ""
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *lutWatcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("grade: LUT watcher error", slog.Any("error", err))
		}
	}
}

func (w *lutWatcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" || filepath.Clean(ev.Name) != w.path {
		return
	}
	path := w.path
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDelay, func() {
		w.log.Info("grade: LUT file changed, reloading", slog.String("path", path))
		w.reload(path)
	})
}

func (w *lutWatcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	err := w.fsw.Close()
	<-w.done
	return err
}
