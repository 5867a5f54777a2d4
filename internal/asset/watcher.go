package asset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cached assets whose files change on disk, so the next
// request for them picks up the new content.
type Watcher struct {
	cache   *Cache
	root    string
	resolve func(name string) string
	watcher *fsnotify.Watcher
}

// NewWatcher watches root and its subdirectories. resolve maps an asset name
// to the file path the decoder reads; nil means names are paths.
func NewWatcher(c *Cache, root string, resolve func(string) string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if resolve == nil {
		resolve = func(name string) string { return name }
	}
	w := &Watcher{cache: c, root: root, resolve: resolve, watcher: fw}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	logger.Info("watching sounds", "dir", root)
	return w, nil
}

// Run handles events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Debug("fsnotify error", "dir", w.root, "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				logger.Debug("fsnotify add dir", "dir", event.Name, "error", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	changed := filepath.Clean(event.Name)
	n := w.cache.InvalidateFunc(func(name string) bool {
		return filepath.Clean(w.resolve(name)) == changed
	})
	if n > 0 {
		logger.Info("sound changed on disk", "file", event.Name, "event", event.Op, "entries", n)
	}
}
