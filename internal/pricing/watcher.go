package pricing

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the table whenever the pricing file changes on disk. It
// registers the watcher synchronously so setup failures surface to the
// caller, then returns; reloads run on a background goroutine that exits
// when stop is closed.
func (t *Table) Watch(path string, logger *zap.Logger, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors and config maps replace the file, which
	// drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go t.watchLoop(watcher, path, logger, stop)
	return nil
}

func (t *Table) watchLoop(watcher *fsnotify.Watcher, path string, logger *zap.Logger, stop <-chan struct{}) {
	defer watcher.Close()

	target := filepath.Clean(path)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := t.Reload(path); err != nil {
				logger.Warn("Pricing reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Info("Pricing configuration reloaded", zap.String("path", path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Pricing watcher error", zap.Error(err))
		}
	}
}
