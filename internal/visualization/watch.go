package visualization

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the rule file whenever it is written or replaced, until ctx
// is done. Bursts of events within debounce trigger a single reload. The
// parent directory is watched so editors that save by rename are seen.
func (e *RuleEngine) Watch(ctx context.Context, debounce time.Duration) error {
	if e == nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(e.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(e.path)
	e.logger.Info("watching visualization rules", slog.String("path", target))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Stop()
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("rules watcher error", slog.Any("error", err))
		case <-fire:
			fire = nil
			if err := e.Reload(); err != nil {
				e.logger.Warn("rules reload failed, keeping previous rules", slog.Any("error", err))
				continue
			}
			e.logger.Info("visualization rules reloaded", slog.Int("rules", e.Len()))
		}
	}
}
