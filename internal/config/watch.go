package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. active is the config currently
// running; it anchors the first reload diff. Watch runs until ctx is
// cancelled.
//
// Only the log level is hot-applicable. A reload that touches any other
// section still reaches onChange, but Watch logs the sections whose new
// values wait for a restart so an operator editing the file live is not
// left guessing why nothing changed.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous config remains active — Watch does not call onChange.
func Watch(ctx context.Context, path string, active *Config, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Reload on write and create only. Editors often save via rename,
			// which arrives as fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			if pending := RestartPending(active, cfg); len(pending) > 0 {
				slog.Warn("config: reloaded; changed sections apply on restart only",
					"path", path, "sections", pending)
			} else {
				slog.Info("config: reloaded", "path", path)
			}
			onChange(cfg)
			active = cfg

			// An atomic save replaces the inode; re-add the path.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// RestartPending compares two configs and returns the YAML section names
// whose changes a running daemon cannot pick up. Log level changes are
// hot-applied and never listed.
func RestartPending(prev, next *Config) []string {
	var out []string
	if prev.Monitor != next.Monitor {
		out = append(out, "monitor")
	}
	if prev.Queue != next.Queue {
		out = append(out, "queue")
	}
	if prev.Bench != next.Bench {
		out = append(out, "bench")
	}
	if prev.Notify != next.Notify {
		out = append(out, "notify")
	}
	if prev.Storage != next.Storage {
		out = append(out, "storage")
	}
	if prev.Security != next.Security {
		out = append(out, "security")
	}
	if prev.API != next.API {
		out = append(out, "api")
	}
	return out
}
