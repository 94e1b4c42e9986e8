package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dealsourcer/orgsearch/pkg/observability"
)

// reloadDebounce coalesces the event bursts editors and atomic writers
// produce for a single save.
const reloadDebounce = 200 * time.Millisecond

// WatchConfigFile reloads configuration whenever the file at path changes
// and hands the result to onReload. Reload failures are logged and the
// previous configuration stays in effect. The watcher stops when ctx is
// cancelled.
//
// The parent directory is watched rather than the file itself so that
// atomic rename-and-replace saves are observed.
func WatchConfigFile(ctx context.Context, path string, logger *observability.Logger, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	log := logger.WithField("config_file", path)

	go func() {
		defer watcher.Close()

		var pending *time.Timer
		var pendingCh <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending == nil {
					pending = time.NewTimer(reloadDebounce)
					pendingCh = pending.C
				} else {
					pending.Reset(reloadDebounce)
				}

			case <-pendingCh:
				pending = nil
				pendingCh = nil

				cfg, err := LoadConfig()
				if err != nil {
					log.WithError(err).Warn("config reload failed, keeping previous configuration")
					continue
				}
				log.Info("configuration reloaded")
				onReload(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			}
		}
	}()

	return nil
}
