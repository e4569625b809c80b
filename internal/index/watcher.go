package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/storage"
)

// Event kinds reported by the watcher.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes one change to a note that the index has absorbed.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// EventCallback is called after a watcher-driven index change.
type EventCallback func(Event)

const reconcileDelay = 200 * time.Millisecond

// Watcher keeps the index in step with the vault directory.
type Watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
}

// NewWatcher creates a watcher over the vault at root. cb may be nil.
func NewWatcher(db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) *Watcher {
	return &Watcher{db: db, store: store, root: root, logger: logger, cb: cb}
}

// Run processes file change events until ctx is cancelled. New directories
// are watched as they appear; a rename schedules a reconciliation pass, since
// fsnotify reports only the old name.
func (wt *Watcher) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, wt.root); err != nil {
		return err
	}
	wt.logger.Info("watcher: started", slog.String("root", wt.root))

	var (
		reconcileTimer *time.Timer
		reconcileCh    <-chan time.Time
	)
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			wt.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			wt.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if wt.handle(w, ev) {
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			wt.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle applies one fsnotify event and reports whether a reconciliation
// pass is needed.
func (wt *Watcher) handle(w *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirsRecursive(w, ev.Name); err != nil {
				wt.logger.Warn("watcher: add new dir failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			wt.indexDir(ev.Name)
			return false
		}
	}

	if !strings.HasSuffix(ev.Name, ".md") {
		return false
	}
	rel, err := filepath.Rel(wt.root, ev.Name)
	if err != nil {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := EventUpdated
		if ev.Op&fsnotify.Create != 0 {
			kind = EventCreated
		}
		wt.index(rel, kind)
		return false

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		wt.remove(rel)
		return ev.Op&fsnotify.Rename != 0
	}
	return false
}

// index re-reads rel and records it unless its content is unchanged.
func (wt *Watcher) index(rel, kind string) {
	data, err := wt.store.Read(rel)
	if err != nil {
		wt.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if cs, _ := wt.db.GetChecksum(rel); cs == checksum.Sum(data) {
		return
	}
	if err := indexFile(wt.db, rel, data); err != nil {
		wt.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	wt.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	wt.emit(kind, rel)
}

func (wt *Watcher) remove(rel string) {
	if err := wt.db.DeleteNote(rel); err != nil {
		wt.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	wt.logger.Debug("watcher: deleted", slog.String("path", rel))
	wt.emit(EventDeleted, rel)
}

// reconcile compares the index with the vault: rows without a file are
// removed and files that are new or changed are indexed.
func (wt *Watcher) reconcile() {
	checksums, err := wt.db.AllChecksums()
	if err != nil {
		wt.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := wt.store.List("")
	if err != nil {
		wt.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			wt.remove(p)
		}
	}
	for p, cs := range disk {
		old, known := checksums[p]
		switch {
		case !known:
			wt.index(p, EventCreated)
		case old != cs:
			wt.index(p, EventUpdated)
		}
	}
}

// indexDir indexes any .md files found in a newly created directory.
func (wt *Watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		if rel, relErr := filepath.Rel(wt.root, path); relErr == nil {
			wt.index(rel, EventCreated)
		}
		return nil
	})
}

func (wt *Watcher) emit(kind, path string) {
	if wt.cb != nil {
		wt.cb(Event{Kind: kind, Path: path})
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
