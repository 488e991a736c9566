package arena

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

const settleDelay = 250 * time.Millisecond

// Watch catalogues CFA files in dir as they are created or rewritten, until
// ctx is cancelled. A file is only read once it has been quiet for a short
// while so that partially written files aren't picked up.
func (a *Arena) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isCFA(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case now := <-ticker.C:
			for file, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, file)
				if err := a.catalogue(dir, file); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Printf("Watch error: %v\n", err)
		}
	}
}
