package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"media-sync/internal/autoscan"
	"media-sync/internal/filesystem"
	"media-sync/internal/logging"
	"media-sync/internal/mediatypes"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
	"media-sync/internal/scheduler"
	"media-sync/internal/store"
)

// AddFile synchronously imports path. Directories are imported with their
// contents when recursive is set. The returned ID is the object created
// (or found) for path itself; InvalidID with a nil error means the file
// was skipped as non-media.
func (m *Manager) AddFile(ctx context.Context, path string, recursive bool) (object.ID, error) {
	path = filepath.Clean(path)
	return m.addPath(ctx, path, m.rootFor(path), recursive, m.cfg.HiddenFiles, nil)
}

// AddFileAsync queues an import task for path and returns its task ID, or
// 0 during shutdown.
func (m *Manager) AddFileAsync(path string, recursive, lowPriority bool) uint64 {
	path = filepath.Clean(path)
	task := newAddFileTask(m, path, m.rootFor(path), recursive, m.cfg.HiddenFiles)
	return m.sched.Enqueue(task, lowPriority)
}

// rootFor picks the tree anchor for an import: the autoscan covering path,
// or the parent directory for one-off imports.
func (m *Manager) rootFor(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d := m.autoscans.FindOverlap(path); d != nil && autoscan.IsSubdir(path, d.Location()) {
		return d.Location()
	}
	return filepath.Dir(path)
}

func (m *Manager) addPath(ctx context.Context, path, root string, recursive, hidden bool, valid func() bool) (object.ID, error) {
	var (
		info os.FileInfo
		err  error
	)
	if m.cfg.FollowSymlinks {
		info, err = filesystem.Stat(path, m.cfg.Retry)
	} else {
		info, err = filesystem.Lstat(path, m.cfg.Retry)
		if err == nil && info.Mode()&fs.ModeSymlink != 0 {
			logging.Debug("Skipping symlink %s", path)
			return object.InvalidID, nil
		}
	}
	if err != nil {
		return object.InvalidID, fmt.Errorf("failed to access %s: %w", path, err)
	}

	if info.IsDir() {
		id, err := m.store.EnsurePathExistence(ctx, root, path)
		if err != nil {
			return object.InvalidID, err
		}
		if recursive {
			if err := m.addRecursive(ctx, path, root, hidden, valid); err != nil {
				return id, err
			}
		}
		return id, nil
	}
	return m.createSingleItem(ctx, path, root, info)
}

// addRecursive walks dir depth-first importing every media file. A non-nil
// valid func is checked before each entry so an invalidated task stops
// enumerating.
func (m *Manager) addRecursive(ctx context.Context, dir, root string, hidden bool, valid func() bool) error {
	entries, err := filesystem.ReadDir(dir, m.cfg.Retry)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return fmt.Errorf("import of %s interrupted: %w", dir, scheduler.ErrShutdown)
		}
		if valid != nil && !valid() {
			logging.Debug("Import task for %s invalidated, aborting", dir)
			return errScanAborted
		}

		name := entry.Name()
		if !hidden && strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		if entry.IsDir() {
			if _, err := m.store.EnsurePathExistence(ctx, root, full); err != nil {
				metrics.ScanErrors.Inc()
				logging.Error("Failed to create container for %s: %v", full, err)
				continue
			}
			if err := m.addRecursive(ctx, full, root, hidden, valid); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			if entry.Type()&fs.ModeSymlink == 0 || !m.cfg.FollowSymlinks {
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
			continue
		}
		if _, err := m.createSingleItem(ctx, full, root, info); err != nil {
			metrics.ScanErrors.Inc()
			logging.Error("Failed to import %s: %v", full, err)
		}
	}
	return nil
}

// createSingleItem imports one media file: physical object, container art,
// and virtual layout copies. An object already stored at path is returned
// as-is. Non-media files are skipped with InvalidID and no error.
func (m *Manager) createSingleItem(ctx context.Context, path, root string, info os.FileInfo) (object.ID, error) {
	if existing, err := m.store.FindObjectIDByPath(ctx, path); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return object.InvalidID, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !mediatypes.IsMediaFile(ext) {
		logging.Debug("Skipping non-media file %s", path)
		return object.InvalidID, nil
	}
	mime, class := mediatypes.Classify(path)

	dir := filepath.Dir(path)
	parentID, err := m.store.EnsurePathExistence(ctx, root, dir)
	if err != nil {
		return object.InvalidID, err
	}

	obj := &object.Object{
		ParentID: parentID,
		RefID:    object.InvalidID,
		Type:     object.TypeItem,
		Class:    class,
		Title:    strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
		Location: path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MimeType: mime,
	}
	obj.SetMetadata(object.MetaTitle, obj.Title)
	obj.SetMetadata(object.MetaDate, info.ModTime().Format("2006-01-02"))

	if res, ok := m.art.FindUp(dir, root); ok {
		obj.AddResource(res)
	}

	if err := m.store.AddObject(ctx, obj); err != nil {
		return object.InvalidID, err
	}
	metrics.ScanObjectsAdded.Inc()
	m.notifyChanged(map[object.ID]struct{}{parentID: {}})

	if err := m.layout.Process(ctx, obj, root); err != nil {
		logging.Warn("Layout failed for %s: %v", path, err)
	}
	return obj.ID, nil
}
