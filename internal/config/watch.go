package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay collapses the burst of events an editor produces when saving.
const settleDelay = 100 * time.Millisecond

// Watch reloads the configuration whenever its YAML file changes and passes
// the result to onChange. Invalid files are logged and skipped. Watch blocks
// until ctx is cancelled; it returns immediately when c has no file.
func (c *Config) Watch(ctx context.Context, logger *slog.Logger, onChange func(*Config)) error {
	if c.File == "" {
		return nil
	}

	path, err := filepath.Abs(c.File)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		next, err := c.Reload()
		if err != nil {
			logger.Warn("config reload failed", "file", c.File, "error", err)
			return
		}
		logger.Info("config reloaded", "file", c.File)
		onChange(next)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(settleDelay, reload)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
