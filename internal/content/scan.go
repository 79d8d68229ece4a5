package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"media-sync/internal/autoscan"
	"media-sync/internal/filesystem"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
	"media-sync/internal/scheduler"
	"media-sync/internal/store"
)

// errScanAborted signals a cooperative abort: the scan's task was
// invalidated or its autoscan retired mid-walk. Watermarks accumulated so
// far still commit, but enumeration stops at once and the stale-object
// sweep is skipped because the candidate accounting is incomplete.
var errScanAborted = errors.New("scan aborted")

// rescanDirectory incrementally reconciles one directory with its
// container. Children of the container that the directory listing no
// longer accounts for are removed in one batch at the end; files whose
// modification time advanced past the previous scan's watermark are
// re-imported. With the directory's recursive flag set, subdirectories
// are reconciled inline within the same task.
//
// Cooperative checkpoints before each entry: context cancellation aborts
// with ErrShutdown so partial watermarks still commit; task invalidation
// and a retired scan ID (the autoscan was removed mid-scan) abort with
// errScanAborted, which propagates through nested frames. A nil valid
// func disables the task checkpoint for direct synchronous calls.
func (m *Manager) rescanDirectory(ctx context.Context, d *autoscan.Directory, scanID int, path string, valid func() bool) error {
	containerID, err := m.store.FindObjectIDByPath(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		containerID, err = m.store.EnsurePathExistence(ctx, d.Location(), path)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve container for %s: %w", path, err)
	}

	entries, err := filesystem.ReadDir(path, m.cfg.Retry)
	if err != nil {
		m.handleVanishedDirectory(ctx, d, path, containerID)
		return nil
	}

	candidates, err := m.store.GetObjects(ctx, containerID, !d.Recursive())
	if err != nil {
		return fmt.Errorf("failed to list removal candidates for %s: %w", path, err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return fmt.Errorf("rescan of %s interrupted: %w", path, scheduler.ErrShutdown)
		}
		if valid != nil && !valid() {
			logging.Debug("Rescan task for %s invalidated, aborting", path)
			return errScanAborted
		}
		if d.ScanID() != scanID {
			logging.Debug("Autoscan for %s retired mid-scan, aborting", path)
			return errScanAborted
		}

		name := entry.Name()
		if !d.Hidden() && strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(path, name)

		if entry.IsDir() {
			if !d.Recursive() {
				continue
			}
			childID, err := m.store.FindObjectIDByPath(ctx, full)
			if err == nil {
				delete(candidates, childID)
			} else if !errors.Is(err, store.ErrNotFound) {
				metrics.ScanErrors.Inc()
				logging.Error("Failed to look up %s: %v", full, err)
				continue
			}
			if err := m.rescanDirectory(ctx, d, scanID, full, valid); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			if entry.Type()&fs.ModeSymlink == 0 || !m.cfg.FollowSymlinks {
				// An object imported while symlinks were followed must not
				// linger once the policy changes: remove it inline rather
				// than relying on the end-of-scan sweep, which an aborted
				// scan never reaches.
				if id, lookErr := m.store.FindObjectIDByPath(ctx, full); lookErr == nil {
					delete(candidates, id)
					changed, rmErr := m.store.RemoveObject(ctx, id, false)
					if rmErr != nil {
						metrics.ScanErrors.Inc()
						logging.Error("Failed to remove skipped symlink %s: %v", full, rmErr)
						continue
					}
					m.clearChainCache()
					m.notifyChanged(changed)
				}
				continue
			}
		}

		info, err := filesystem.Stat(full, m.cfg.Retry)
		if err != nil {
			metrics.ScanErrors.Inc()
			logging.Warn("Failed to stat %s: %v", full, err)
			continue
		}
		if info.IsDir() {
			// Symlink to a directory; not followed during rescans.
			continue
		}

		mtime := info.ModTime()
		id, err := m.store.FindObjectIDByPath(ctx, full)
		switch {
		case err == nil:
			delete(candidates, id)
			if mtime.After(d.PreviousLMT(path)) {
				// Content changed since the last completed scan:
				// replace the object so metadata and layout refresh.
				changed, rmErr := m.store.RemoveObject(ctx, id, false)
				if rmErr != nil {
					metrics.ScanErrors.Inc()
					logging.Error("Failed to replace %s: %v", full, rmErr)
					continue
				}
				m.clearChainCache()
				m.notifyChanged(changed)
				if _, addErr := m.createSingleItem(ctx, full, d.Location(), info); addErr != nil {
					metrics.ScanErrors.Inc()
					logging.Error("Failed to re-import %s: %v", full, addErr)
					continue
				}
			}
			d.SetCurrentLMT(path, mtime)

		case errors.Is(err, store.ErrNotFound):
			if _, addErr := m.createSingleItem(ctx, full, d.Location(), info); addErr != nil {
				metrics.ScanErrors.Inc()
				logging.Error("Failed to import %s: %v", full, addErr)
				continue
			}
			d.SetCurrentLMT(path, mtime)

		default:
			metrics.ScanErrors.Inc()
			logging.Error("Failed to look up %s: %v", full, err)
		}
	}

	if len(candidates) > 0 {
		leftover := make([]object.ID, 0, len(candidates))
		for id := range candidates {
			leftover = append(leftover, id)
		}
		changed, err := m.store.RemoveObjects(ctx, leftover)
		if err != nil {
			return fmt.Errorf("failed to remove stale objects under %s: %w", path, err)
		}
		metrics.ScanObjectsRemoved.Add(float64(len(leftover)))
		m.clearChainCache()
		m.notifyChanged(changed)
		logging.Info("Removed %d stale objects under %s", len(leftover), path)
	}
	return nil
}

// handleVanishedDirectory handles a directory that disappeared between
// being queued and being read. The root of an autoscan escalates to
// handleLostLocation; a subdirectory just loses its container subtree.
func (m *Manager) handleVanishedDirectory(ctx context.Context, d *autoscan.Directory, path string, containerID object.ID) {
	if path == d.Location() {
		m.handleLostLocation(ctx, d)
		return
	}

	logging.Info("Directory vanished during scan: %s", path)
	if !containerID.Valid() || containerID.Forbidden() {
		return
	}
	changed, err := m.store.RemoveObject(ctx, containerID, true)
	if err != nil {
		logging.Error("Failed to remove container for %s: %v", path, err)
		return
	}
	m.clearChainCache()
	m.notifyChanged(changed)
}
