package credential

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const (
	watchDebounce  = 500 * time.Millisecond
	selfSaveWindow = 2 * time.Second
)

// WatchFile reloads the pool when the credential file changes on disk,
// so hand-edits and out-of-band imports take effect without a restart.
// Only meaningful with the file storage backend. Blocks until ctx is done.
func WatchFile(ctx context.Context, path string, pool *Pool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and atomic renames replace the inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Base(path)

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("credential file watcher error")
		case <-fire:
			if pool.SavedRecently(selfSaveWindow) {
				// Our own persist; the in-memory state is already current.
				continue
			}
			if err := pool.Reload(ctx); err != nil {
				log.WithError(err).Error("reload credentials after file change failed")
				continue
			}
			log.WithField("path", path).Info("credentials reloaded after file change")
		}
	}
}
