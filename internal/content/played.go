package content

import (
	"context"
	"fmt"
	"strings"

	"media-sync/internal/object"
)

// NotifyPlayed marks id as played and records it at the head of the
// recently-played list. The stored object is only rewritten on the first
// play; repeats just reorder the list.
func (m *Manager) NotifyPlayed(ctx context.Context, id object.ID) error {
	obj, err := m.store.LoadObject(ctx, id)
	if err != nil {
		return err
	}
	if !obj.IsItem() {
		return fmt.Errorf("object %d is not an item", id)
	}

	if m.shouldMarkPlayed(obj.MimeType) {
		updated := obj.Clone()
		updated.SetFlag(object.FlagPlayed)
		if !updated.Equals(obj) {
			if err := m.store.UpdateObject(ctx, updated); err != nil {
				return err
			}
			m.notifyChanged(map[object.ID]struct{}{obj.ParentID: {}})
		}
	}

	m.playedMu.Lock()
	defer m.playedMu.Unlock()

	// Move-to-front, then cap.
	list := make([]object.ID, 0, len(m.lastPlayed)+1)
	list = append(list, id)
	for _, prev := range m.lastPlayed {
		if prev != id {
			list = append(list, prev)
		}
	}
	if len(list) > m.cfg.LastPlayedMax {
		list = list[:m.cfg.LastPlayedMax]
	}
	m.lastPlayed = list
	return nil
}

// LastPlayed returns the recently-played item IDs, most recent first.
func (m *Manager) LastPlayed() []object.ID {
	m.playedMu.Lock()
	defer m.playedMu.Unlock()

	out := make([]object.ID, len(m.lastPlayed))
	copy(out, m.lastPlayed)
	return out
}

// shouldMarkPlayed reports whether items with the given MIME type get the
// played flag. An empty prefix list marks everything.
func (m *Manager) shouldMarkPlayed(mime string) bool {
	if len(m.cfg.PlayedMimePrefixes) == 0 {
		return true
	}
	for _, prefix := range m.cfg.PlayedMimePrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}
