package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of fsnotify events an editor's atomic
// save produces into a single reload.
const debounceWindow = 200 * time.Millisecond

// Watch monitors path and calls onChange with the freshly loaded Config each
// time the file changes on disk. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the
// previous config stays active and onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var (
		pending  bool
		debounce = time.NewTimer(0)
	)
	if !debounce.Stop() {
		<-debounce.C
	}

	reloads := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writes and creates both matter: editors often save via rename,
			// which surfaces as a create on the watched path.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if !pending {
					pending = true
					debounce.Reset(debounceWindow)
				}
			}

		case <-debounce.C:
			pending = false
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			reloads++
			slog.Info("config: reloaded", "path", path, "reloads", reloads)
			onChange(cfg)

			// An atomic save replaces the inode; re-arm the watch on the path.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
