package content

import (
	"context"
	"errors"
	"fmt"

	"media-sync/internal/autoscan"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
	"media-sync/internal/scheduler"
	"media-sync/internal/store"
)

// RemoveObject synchronously removes id. For a physical container this
// first invalidates queued tasks touching paths below it and retires every
// autoscan nested inside it, so no in-flight work resurrects the subtree.
func (m *Manager) RemoveObject(ctx context.Context, id object.ID, recursive bool) error {
	if id.Forbidden() {
		return fmt.Errorf("cannot remove protected container %d", id)
	}

	obj, err := m.store.LoadObject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if obj.IsContainer() && obj.Location != "" {
		m.detachSubtree(ctx, obj.Location)
	}

	changed, err := m.store.RemoveObject(ctx, id, recursive)
	if err != nil {
		return err
	}
	m.clearChainCache()
	m.notifyChanged(changed)
	logging.Info("Removed object %d (%s)", id, obj.Title)
	return nil
}

// RemoveObjectAsync queues the removal and returns its task ID, or 0
// during shutdown.
func (m *Manager) RemoveObjectAsync(id object.ID, recursive bool) uint64 {
	task := newRemoveObjectTask(m, id, recursive)
	return m.sched.Enqueue(task, false)
}

// detachSubtree severs everything operating below location: pending tasks
// are invalidated and nested autoscans are retired (persistent ones are
// orphaned so they return with the directory).
func (m *Manager) detachSubtree(ctx context.Context, location string) {
	m.sched.InvalidateWhere(func(t scheduler.Task) bool {
		p, ok := t.(pathTask)
		return ok && autoscan.IsSubdir(p.TaskPath(), location)
	})

	m.mu.Lock()
	doomed := m.autoscans.RemoveIfSubdir(location)
	for _, d := range doomed {
		m.unregister(d)
	}
	m.mu.Unlock()

	for _, d := range doomed {
		metrics.AutoscanDirectories.WithLabelValues(string(d.Mode())).Dec()
		if d.Persistent() {
			d.SetObjectID(object.InvalidID)
			d.ResetLMT()
			if d.DatabaseID() > 0 {
				if err := m.store.OrphanAutoscan(ctx, d.DatabaseID()); err != nil {
					logging.Error("Failed to orphan autoscan %s: %v", d.Location(), err)
				}
			}
			logging.Info("Autoscan orphaned with removed subtree: %s", d.Location())
		} else {
			if d.DatabaseID() > 0 {
				if err := m.store.RemoveAutoscan(ctx, d.DatabaseID()); err != nil {
					logging.Error("Failed to remove autoscan %s: %v", d.Location(), err)
				}
			}
			logging.Info("Autoscan removed with subtree: %s", d.Location())
		}
	}
}
