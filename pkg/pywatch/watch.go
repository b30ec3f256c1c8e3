// Package pywatch re-runs a caller-supplied session function whenever a
// program file changes on disk. It reloads nothing itself.
package pywatch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Run watches path and calls session every time the file changes, as well
// as once immediately on entry. It blocks until session returns an error
// or the watcher itself fails.
func Run(path string, session func() error) error {
	if err := session(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := session(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
