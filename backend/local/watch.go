package local

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/vfs"
)

// Watch observes path and, for a directory, its direct children. Disk renames
// cannot be paired reliably, so the old name is reported as Deleted and the
// new name as Created. Permission changes are not reported.
func (lb *LocalBackend) Watch(ctx context.Context, path string, handler func(vfs.Event)) (vfs.Subscription, error) {
	path = data.Normalize(path)
	fullPath := lb.resolvePath(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(fullPath); err != nil {
		watcher.Close()
		return nil, mapError(err, path)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if e, ok := lb.translate(event); ok {
					handler(e)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				lb.log.Warn("Watch: watcher for %s reported - %v", path, err)
			}
		}
	}()

	lb.log.Debug("Watch: watching %s", fullPath)
	return vfs.SubscriptionFunc(watcher.Close), nil
}

func (lb *LocalBackend) translate(event fsnotify.Event) (vfs.Event, bool) {
	path := lb.virtualPath(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		return vfs.Event{Kind: vfs.Created, Path: path}, true
	case event.Has(fsnotify.Write):
		return vfs.Event{Kind: vfs.Modified, Path: path}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return vfs.Event{Kind: vfs.Deleted, Path: path}, true
	default:
		return vfs.Event{}, false
	}
}
