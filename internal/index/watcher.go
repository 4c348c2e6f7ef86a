package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/varga/laguz/internal/storage"
)

// EventCallback is called after a watcher-driven index change. kind is one of
// "created", "updated", "deleted"; pageID is the namespaced page id.
type EventCallback func(kind string, pageID string)

// Watch starts an fsnotify watcher on the pages and journals directories and
// processes external file edits until ctx is cancelled, calling cb (if
// non-nil) after each successful index mutation. Rename storms trigger a
// debounced reconciliation pass that drops index entries whose files no
// longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, graphRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range []string{storage.PagesDir, storage.JournalsDir} {
		abs := filepath.Join(graphRoot, dir)
		if mkErr := os.MkdirAll(abs, 0o755); mkErr != nil {
			return mkErr
		}
		if addErr := w.Add(abs); addErr != nil {
			return addErr
		}
	}

	logger.Info("watcher: started", slog.String("root", graphRoot))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := Sync(db, store, logger); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(graphRoot, ev.Name)
			if relErr != nil {
				continue
			}
			pageID, name, known := PageForPath(rel)
			if !known {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := IndexPageFile(db, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, pageID)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeletePage(pageID, name); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", pageID)
				}

			case ev.Op&fsnotify.Rename != 0:
				// The new name arrives as a separate Create event; reconcile
				// later to drop the stale entry.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
