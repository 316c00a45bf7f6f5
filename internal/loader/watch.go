package loader

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch observes dir (a plain filesystem path, unlike Load's fs.FS
// abstraction — fsnotify has no virtual-filesystem seam) for migration file
// changes and signals on the returned channel, which buffers one pending
// signal: events that arrive while a signal is already pending are dropped,
// so a burst yields at most one signal beyond any the consumer has already
// taken. It is the one consumer of fsnotify in
// this module: the `develop` command's interactive re-plan loop.
func Watch(ctx context.Context, dir string) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}
