package scanner

import (
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher marks the skeleton cache dirty when transcript files change,
// so the next EnsureFresh rescans immediately instead of waiting out
// the staleness window. Best-effort: watch failures degrade to
// staleness-window polling.
type Watcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}
}

// Watch watches the scan root and its workspace directories. onChange
// fires for create/write events; onRemove fires for remove/rename
// events, where the cache must drop records rather than merge.
func Watch(root string, onChange, onRemove func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, err
	}
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				if err := fw.Add(filepath.Join(root, e.Name())); err != nil {
					log.Printf("WARNING: watcher: %s: %v", e.Name(), err)
				}
			}
		}
	}

	w := &Watcher{fw: fw, done: make(chan struct{})}
	go w.loop(onChange, onRemove)
	return w, nil
}

func (w *Watcher) loop(onChange, onRemove func()) {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// New workspace directories join the watch set.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.fw.Add(ev.Name); err != nil {
						log.Printf("WARNING: watcher: %s: %v", ev.Name, err)
					}
				}
			}
			if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				onRemove()
			} else {
				onChange()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("WARNING: watcher: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
