package modelreg

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads registry entries whose files under dir change on disk.
// Filenames are matched as slash-separated paths relative to dir, the same
// names a FileLoader over dir uses. Only entries that have been requested
// are reloaded. Watch blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("modelreg: watch: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("modelreg: watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			rel, err := filepath.Rel(dir, event.Name)
			if err != nil {
				continue
			}
			name := filepath.ToSlash(rel)
			if r.State(name) == Unrequested {
				continue
			}
			if r.Reload(name) {
				r.log.Info("model changed on disk", "file", name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("modelreg: watch", "err", err)
		}
	}
}
