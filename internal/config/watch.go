package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"smartassist/internal/logging"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads the configuration at path whenever it changes on disk and
// passes each valid result to onChange. Invalid edits are logged and skipped;
// the previous configuration stays in effect. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors which
// replace the file (write temp + rename) keep triggering reloads.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	if path == "" {
		path = getConfigPath()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce bursts of events from a single save.
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			reload = timer.C

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("config watcher error", "error", err)

		case <-reload:
			reload = nil
			cfg, err := Load(abs)
			if err != nil {
				logging.Warn("config reload failed", "path", abs, "error", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				logging.Warn("reloaded config is invalid", "path", abs, "error", err)
				continue
			}
			logging.Info("config reloaded", "path", abs, "backend", cfg.Gateway.CurrentBackend)
			onChange(cfg)
		}
	}
}
