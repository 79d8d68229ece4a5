package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
	"media-sync/internal/store"
)

// chainKey flattens a container chain into a cache key.
func chainKey(chain []*object.Object) string {
	titles := make([]string, len(chain))
	for i, c := range chain {
		titles[i] = c.Title
	}
	return strings.Join(titles, "\x00")
}

// AddContainerChain materializes a virtual container chain, serving
// repeats from the in-memory cache. The cache only maps chain keys to
// IDs that were confirmed by the store; it is cleared wholesale whenever
// anything is removed from the tree.
func (m *Manager) AddContainerChain(ctx context.Context, chain []*object.Object) (object.ID, error) {
	key := chainKey(chain)

	m.chainMu.Lock()
	if id, ok := m.containerMap[key]; ok {
		m.chainMu.Unlock()
		metrics.ContainerChainCacheHits.Inc()
		return id, nil
	}
	m.chainMu.Unlock()
	metrics.ContainerChainCacheMisses.Inc()

	id, created, err := m.store.AddContainerChain(ctx, chain)
	if err != nil {
		return object.InvalidID, err
	}

	m.chainMu.Lock()
	m.containerMap[key] = id
	m.chainMu.Unlock()

	if len(created) > 0 {
		metrics.ContainersCreated.Add(float64(len(created)))
	}
	return id, nil
}

// clearChainCache drops every cached chain. Any removal may have deleted
// a cached container, and a stale hit would re-parent items under a dead
// ID, so the whole map goes.
func (m *Manager) clearChainCache() {
	m.chainMu.Lock()
	m.containerMap = make(map[string]object.ID)
	m.chainMu.Unlock()
}

// AddVirtualItem files a virtual copy of orig under parentID and offers
// orig's art to the container.
func (m *Manager) AddVirtualItem(ctx context.Context, orig *object.Object, parentID object.ID) error {
	copy := orig.Clone()
	copy.ID = object.InvalidID
	copy.RefID = orig.ID
	copy.ParentID = parentID
	copy.Virtual = true

	if err := m.store.AddObject(ctx, copy); err != nil {
		return err
	}
	m.assignFanArt(ctx, parentID, orig)
	m.notifyChanged(map[object.ID]struct{}{parentID: {}})
	return nil
}

// assignFanArt gives a container without art a weak reference to an art
// resource of item. The reference stores the item's ID and resource index
// rather than copying the resource; ResolveArt chases and prunes it.
func (m *Manager) assignFanArt(ctx context.Context, containerID object.ID, item *object.Object) {
	artIdx := item.FindResource(object.ResourceArt)
	if artIdx < 0 {
		return
	}

	container, err := m.store.LoadObject(ctx, containerID)
	if err != nil {
		logging.Warn("Failed to load container %d for art: %v", containerID, err)
		return
	}
	if container.FindResource(object.ResourceArt) >= 0 {
		return
	}

	updated := container.Clone()
	ref := object.Resource{Kind: object.ResourceArt}
	ref.SetAttribute(object.AttrFanArtObjectID, strconv.FormatInt(int64(item.ID), 10))
	ref.SetAttribute(object.AttrFanArtResourceIndex, strconv.Itoa(artIdx))
	updated.AddResource(ref)

	if err := m.store.UpdateObject(ctx, updated); err != nil {
		logging.Warn("Failed to assign art to container %d: %v", containerID, err)
	}
}

// ResolveArt returns the concrete art resource for obj, following a weak
// fan-art reference if present. A reference whose target object or
// resource no longer exists is pruned from obj in the store and reported
// as absent.
func (m *Manager) ResolveArt(ctx context.Context, obj *object.Object) (object.Resource, bool, error) {
	idx := obj.FindResource(object.ResourceArt)
	if idx < 0 {
		return object.Resource{}, false, nil
	}
	res := obj.Resources[idx]

	refID := res.GetAttribute(object.AttrFanArtObjectID)
	if refID == "" {
		// Direct art resource.
		return res, true, nil
	}

	id, err := strconv.ParseInt(refID, 10, 64)
	if err != nil {
		return object.Resource{}, false, fmt.Errorf("malformed art reference on object %d: %w", obj.ID, err)
	}
	refIdx, err := strconv.Atoi(res.GetAttribute(object.AttrFanArtResourceIndex))
	if err != nil {
		return object.Resource{}, false, fmt.Errorf("malformed art reference on object %d: %w", obj.ID, err)
	}

	target, err := m.store.LoadObject(ctx, object.ID(id))
	if errors.Is(err, store.ErrNotFound) || (err == nil && refIdx >= len(target.Resources)) {
		m.pruneArtRef(ctx, obj)
		return object.Resource{}, false, nil
	}
	if err != nil {
		return object.Resource{}, false, err
	}
	return target.Resources[refIdx], true, nil
}

func (m *Manager) pruneArtRef(ctx context.Context, obj *object.Object) {
	updated := obj.Clone()
	updated.RemoveResource(object.ResourceArt)
	if err := m.store.UpdateObject(ctx, updated); err != nil {
		logging.Warn("Failed to prune stale art reference on object %d: %v", obj.ID, err)
		return
	}
	logging.Debug("Pruned stale art reference on object %d", obj.ID)
}
