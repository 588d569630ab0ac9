package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor produces on save.
const reloadDelay = 200 * time.Millisecond

// ReloadCallback is called after a watcher-driven sync that changed the store.
type ReloadCallback func(res SyncResult)

// Watch starts an fsnotify watcher on the fixtures file and re-runs Sync after
// it changes, until ctx is cancelled. cb (if non-nil) is called after each sync
// that changed the store.
//
// The parent directory is watched rather than the file itself so that
// rename-on-save editors and a file created after start are both picked up.
func Watch(ctx context.Context, db NoteIndex, path string, logger *slog.Logger, cb ReloadCallback) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("fixtures", abs))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDelay)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			res, syncErr := Sync(db, abs, logger)
			if syncErr != nil {
				logger.Warn("watcher: reload failed", slog.String("error", syncErr.Error()))
				continue
			}
			logger.Info("watcher: fixtures reloaded",
				slog.Int("upserted", res.Upserted),
				slog.Int("removed", res.Removed),
				slog.Int("skipped", res.Skipped))
			if cb != nil && res.Changed() {
				cb(res)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("watcher: fixtures changed", slog.String("op", ev.Op.String()))
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
