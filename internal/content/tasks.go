package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-sync/internal/autoscan"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
	"media-sync/internal/scheduler"
)

// pathTask is implemented by tasks tied to a filesystem path, so removals
// can invalidate everything queued below a subtree.
type pathTask interface {
	TaskPath() string
}

// addFileTask imports a path on the worker.
type addFileTask struct {
	scheduler.Base
	m         *Manager
	path      string
	root      string
	recursive bool
	hidden    bool
}

func newAddFileTask(m *Manager, path, root string, recursive, hidden bool) *addFileTask {
	return &addFileTask{
		Base:      scheduler.NewBase(scheduler.KindAddFile, "Importing: "+path, false),
		m:         m,
		path:      path,
		root:      root,
		recursive: recursive,
		hidden:    hidden,
	}
}

func (t *addFileTask) TaskPath() string { return t.path }

func (t *addFileTask) Run(ctx context.Context) error {
	if !t.Valid() {
		return nil
	}
	_, err := t.m.addPath(ctx, t.path, t.root, t.recursive, t.hidden, t.Valid)
	if errors.Is(err, errScanAborted) {
		return nil
	}
	return err
}

// removeObjectTask removes an object on the worker. Not cancellable: a
// removal the caller was promised must not silently evaporate.
type removeObjectTask struct {
	scheduler.Base
	m         *Manager
	id        object.ID
	recursive bool
}

func newRemoveObjectTask(m *Manager, id object.ID, recursive bool) *removeObjectTask {
	return &removeObjectTask{
		Base:      scheduler.NewBase(scheduler.KindRemoveObject, fmt.Sprintf("Removing object %d", id), false),
		m:         m,
		id:        id,
		recursive: recursive,
	}
}

func (t *removeObjectTask) Run(ctx context.Context) error {
	if !t.Valid() {
		return nil
	}
	return t.m.RemoveObject(ctx, t.id, t.recursive)
}

// rescanTask runs one incremental directory scan. The watermark commits in
// finishScan even when the scan aborts early, so the next run resumes from
// whatever this one completed.
type rescanTask struct {
	scheduler.Base
	m      *Manager
	adir   *autoscan.Directory
	scanID int
	path   string
}

func newRescanTask(m *Manager, adir *autoscan.Directory, scanID int, path string) *rescanTask {
	return &rescanTask{
		Base:   scheduler.NewBase(scheduler.KindRescanDirectory, "Scanning: "+path, true),
		m:      m,
		adir:   adir,
		scanID: scanID,
		path:   path,
	}
}

func (t *rescanTask) TaskPath() string { return t.path }

// Dispose releases the directory's task slot when the task is discarded
// without running (invalidated while queued, or dropped at shutdown).
func (t *rescanTask) Dispose() {
	t.adir.DecTaskCount()
}

func (t *rescanTask) Run(ctx context.Context) error {
	defer t.adir.DecTaskCount()

	if !t.Valid() || t.adir.ScanID() != t.scanID {
		return nil
	}

	start := time.Now()
	t.adir.IncActiveScans()
	err := t.m.rescanDirectory(ctx, t.adir, t.scanID, t.path, t.Valid)
	t.m.finishScan(context.WithoutCancel(ctx), t.adir)
	if errors.Is(err, errScanAborted) {
		// Cooperative abort is a partial success, not a failure.
		err = nil
	}

	metrics.ScanRunsTotal.WithLabelValues(string(t.adir.Mode())).Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	return err
}

// finishScan commits the scan watermark: the per-directory modification
// times observed during this run become the baseline for the next one.
// An advanced watermark also touches the scanned container itself, so
// consumers watching container modification times see the scan's effect.
func (m *Manager) finishScan(ctx context.Context, d *autoscan.Directory) {
	d.DecActiveScans()
	advanced := d.UpdateLMT()
	if advanced {
		m.touchContainer(ctx, d.ObjectID())
	}
	if d.DatabaseID() > 0 {
		if err := m.store.SaveAutoscan(ctx, d); err != nil {
			// Watermark stays in memory; the next successful save or the
			// shutdown commit picks it up.
			metrics.ScanErrors.Inc()
			logging.Warn("Failed to persist watermarks for %s: %v", d.Location(), err)
		}
	}
}

// touchContainer bumps a container's stored modification time.
func (m *Manager) touchContainer(ctx context.Context, id object.ID) {
	if !id.Valid() || id.Forbidden() {
		return
	}
	obj, err := m.store.LoadObject(ctx, id)
	if err != nil {
		logging.Debug("Cannot touch container %d: %v", id, err)
		return
	}
	updated := obj.Clone()
	updated.ModTime = time.Now()
	if err := m.store.UpdateObject(ctx, updated); err != nil {
		logging.Warn("Failed to touch container %d: %v", id, err)
	}
}
