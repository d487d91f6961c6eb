package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/combatpower/pkg/logger"
)

// Watch reloads path whenever it changes and hands the new Config to
// onChange. A reload that fails keeps the previous config. Watch blocks
// until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors save by rename, which drops a watch on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)
	log := logger.Get().Named("config")
	log.Info(ctx, "watching for changes", logger.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadFile(ctx, path)
			if err != nil {
				log.Error(ctx, "reload failed, keeping previous config",
					logger.String("path", path), logger.Error(err))
				continue
			}
			log.Info(ctx, "reloaded", logger.String("path", path))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "watcher error", logger.Error(err))
		}
	}
}
