package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file on change and hands each successfully
// parsed result to onReload. It blocks until ctx is cancelled; run it
// in its own goroutine. A file that fails to parse keeps the previous
// config in effect.
func Watch(ctx context.Context, path string, log *slog.Logger, onReload func(*Config)) error {
	if log == nil {
		log = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config_reload_failed", "path", path, "error", err)
				continue
			}
			log.Info("config_reloaded", "path", path)
			onReload(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config_watch_error", "error", err)
		}
	}
}
