package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"media-sync/internal/object"
)

const objectColumns = `id, parent_id, ref_id, type, class, title, location,
	size, mod_time, mime_type, virtual, flags, metadata, resources`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (*object.Object, error) {
	var (
		o         object.Object
		modTime   int64
		virtual   int
		metadata  string
		resources string
	)
	err := row.Scan(&o.ID, &o.ParentID, &o.RefID, &o.Type, &o.Class, &o.Title,
		&o.Location, &o.Size, &modTime, &o.MimeType, &virtual, &o.Flags,
		&metadata, &resources)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if modTime > 0 {
		o.ModTime = time.Unix(modTime, 0)
	}
	o.Virtual = virtual != 0

	if err := json.Unmarshal([]byte(metadata), &o.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for object %d: %w", o.ID, err)
	}
	if err := json.Unmarshal([]byte(resources), &o.Resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources for object %d: %w", o.ID, err)
	}
	return &o, nil
}

func encodeObject(o *object.Object) (metadata, resources string, err error) {
	meta := o.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	res := o.Resources
	if res == nil {
		res = []object.Resource{}
	}
	resBytes, err := json.Marshal(res)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode resources: %w", err)
	}
	return string(metaBytes), string(resBytes), nil
}

// LoadObject retrieves a single object by ID.
func (s *Store) LoadObject(ctx context.Context, id object.ID) (*object.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE id = ?`, int64(id))
	o, err := scanObject(row)
	recordQuery("load_object", start, err)
	if err != nil {
		return nil, err
	}
	return s.fillChildCount(ctx, o)
}

// FindObjectByPath retrieves the physical object stored at path.
func (s *Store) FindObjectByPath(ctx context.Context, path string) (*object.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE location = ? AND virtual = 0`, path)
	o, err := scanObject(row)
	recordQuery("find_by_path", start, err)
	if err != nil {
		return nil, err
	}
	return s.fillChildCount(ctx, o)
}

// FindObjectIDByPath is FindObjectByPath without materializing the object.
func (s *Store) FindObjectIDByPath(ctx context.Context, path string) (object.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM objects WHERE location = ? AND virtual = 0`, path).Scan(&id)
	recordQuery("find_id_by_path", start, err)
	if err != nil {
		if err == sql.ErrNoRows {
			return object.InvalidID, ErrNotFound
		}
		return object.InvalidID, err
	}
	return object.ID(id), nil
}

func (s *Store) fillChildCount(ctx context.Context, o *object.Object) (*object.Object, error) {
	if !o.IsContainer() {
		return o, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects WHERE parent_id = ?`, int64(o.ID)).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count children of %d: %w", o.ID, err)
	}
	o.ChildCount = count
	return o, nil
}

// AddObject inserts obj and assigns its new ID in place.
func (s *Store) AddObject(ctx context.Context, obj *object.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.insertObject(ctx, obj)
}

func (s *Store) insertObject(ctx context.Context, obj *object.Object) error {
	metadata, resources, err := encodeObject(obj)
	if err != nil {
		return err
	}

	var modTime int64
	if !obj.ModTime.IsZero() {
		modTime = obj.ModTime.Unix()
	}
	virtual := 0
	if obj.Virtual {
		virtual = 1
	}

	start := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (parent_id, ref_id, type, class, title, location,
			size, mod_time, mime_type, virtual, flags, metadata, resources)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(obj.ParentID), int64(obj.RefID), string(obj.Type), string(obj.Class),
		obj.Title, obj.Location, obj.Size, modTime, obj.MimeType, virtual,
		obj.Flags, metadata, resources,
	)
	recordQuery("add_object", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert object %q: %w", obj.Title, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new object ID: %w", err)
	}
	obj.ID = object.ID(id)
	return nil
}

// UpdateObject rewrites all mutable columns of obj.
func (s *Store) UpdateObject(ctx context.Context, obj *object.Object) error {
	if !obj.ID.Valid() {
		return fmt.Errorf("cannot update object without a valid ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	metadata, resources, err := encodeObject(obj)
	if err != nil {
		return err
	}

	var modTime int64
	if !obj.ModTime.IsZero() {
		modTime = obj.ModTime.Unix()
	}
	virtual := 0
	if obj.Virtual {
		virtual = 1
	}

	start := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE objects SET parent_id = ?, ref_id = ?, type = ?, class = ?,
			title = ?, location = ?, size = ?, mod_time = ?, mime_type = ?,
			virtual = ?, flags = ?, metadata = ?, resources = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?`,
		int64(obj.ParentID), int64(obj.RefID), string(obj.Type), string(obj.Class),
		obj.Title, obj.Location, obj.Size, modTime, obj.MimeType, virtual,
		obj.Flags, metadata, resources, int64(obj.ID),
	)
	recordQuery("update_object", start, err)
	if err != nil {
		return fmt.Errorf("failed to update object %d: %w", obj.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetObjects returns the IDs of the direct children of parentID. With
// itemsOnly set, containers are excluded; a rescan of a non-recursive
// directory must not treat subdirectory containers as removal candidates.
func (s *Store) GetObjects(ctx context.Context, parentID object.ID, itemsOnly bool) (map[object.ID]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT id FROM objects WHERE parent_id = ?`
	if itemsOnly {
		query += ` AND type = 'item'`
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, int64(parentID))
	recordQuery("get_objects", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %d: %w", parentID, err)
	}
	defer rows.Close()

	ids := make(map[object.ID]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[object.ID(id)] = struct{}{}
	}
	return ids, rows.Err()
}

// ListChildren returns the direct children of parentID as full objects,
// containers first, each group sorted by title.
func (s *Store) ListChildren(ctx context.Context, parentID object.ID) ([]*object.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE parent_id = ?
		 ORDER BY type DESC, title COLLATE NOCASE`, int64(parentID))
	recordQuery("list_children", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load children of %d: %w", parentID, err)
	}
	defer rows.Close()

	var children []*object.Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, o)
	}
	return children, rows.Err()
}

// GetChildCount counts the direct children of id.
func (s *Store) GetChildCount(ctx context.Context, id object.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects WHERE parent_id = ?`, int64(id)).Scan(&count)
	recordQuery("child_count", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count children of %d: %w", id, err)
	}
	return count, nil
}

// FindVirtualRefs returns the IDs of virtual objects referencing any of ids.
func (s *Store) FindVirtualRefs(ctx context.Context, ids []object.ID) ([]object.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var refs []object.ID
	start := time.Now()
	var err error
	for _, id := range ids {
		rows, qerr := s.db.QueryContext(ctx,
			`SELECT id FROM objects WHERE ref_id = ?`, int64(id))
		if qerr != nil {
			err = qerr
			break
		}
		for rows.Next() {
			var ref int64
			if serr := rows.Scan(&ref); serr != nil {
				rows.Close()
				recordQuery("find_refs", start, serr)
				return nil, serr
			}
			refs = append(refs, object.ID(ref))
		}
		rows.Close()
		if rerr := rows.Err(); rerr != nil {
			err = rerr
			break
		}
	}
	recordQuery("find_refs", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve virtual references: %w", err)
	}
	return refs, nil
}

// RemoveObject deletes id. With recursive set the entire subtree goes too;
// without it a non-empty container is rejected. Virtual objects referencing
// any removed physical object are removed alongside it, and empty virtual
// ancestor containers are pruned upward. The returned set holds the IDs of
// containers whose child lists changed.
func (s *Store) RemoveObject(ctx context.Context, id object.ID, recursive bool) (map[object.ID]struct{}, error) {
	if id.Forbidden() {
		return nil, fmt.Errorf("refusing to remove protected container %d", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.removeLocked(ctx, []object.ID{id}, recursive)
}

// RemoveObjects batch-removes leftover scan candidates. All IDs are treated
// as recursive removals.
func (s *Store) RemoveObjects(ctx context.Context, ids []object.ID) (map[object.ID]struct{}, error) {
	if len(ids) == 0 {
		return map[object.ID]struct{}{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	for _, id := range ids {
		if id.Forbidden() {
			return nil, fmt.Errorf("refusing to remove protected container %d", id)
		}
	}
	return s.removeLocked(ctx, ids, true)
}

func (s *Store) removeLocked(ctx context.Context, ids []object.ID, recursive bool) (map[object.ID]struct{}, error) {
	start := time.Now()

	changed := make(map[object.ID]struct{})
	doomed := make(map[object.ID]struct{})

	// Breadth-first subtree collection.
	frontier := make([]object.ID, 0, len(ids))
	for _, id := range ids {
		var parent int64
		err := s.db.QueryRowContext(ctx,
			`SELECT parent_id FROM objects WHERE id = ?`, int64(id)).Scan(&parent)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			recordQuery("remove_objects", start, err)
			return nil, err
		}
		doomed[id] = struct{}{}
		changed[object.ID(parent)] = struct{}{}
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]

		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM objects WHERE parent_id = ?`, int64(id))
		if err != nil {
			recordQuery("remove_objects", start, err)
			return nil, err
		}
		var children []object.ID
		for rows.Next() {
			var child int64
			if err := rows.Scan(&child); err != nil {
				rows.Close()
				recordQuery("remove_objects", start, err)
				return nil, err
			}
			children = append(children, object.ID(child))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			recordQuery("remove_objects", start, err)
			return nil, err
		}

		if len(children) > 0 && !recursive {
			err := fmt.Errorf("container %d is not empty", id)
			recordQuery("remove_objects", start, err)
			return nil, err
		}
		for _, child := range children {
			if _, ok := doomed[child]; ok {
				continue
			}
			doomed[child] = struct{}{}
			frontier = append(frontier, child)
		}
	}

	if len(doomed) == 0 {
		recordQuery("remove_objects", start, nil)
		return changed, nil
	}

	// Pull in virtual objects that reference doomed physical objects.
	for id := range doomed {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, parent_id FROM objects WHERE ref_id = ?`, int64(id))
		if err != nil {
			recordQuery("remove_objects", start, err)
			return nil, err
		}
		for rows.Next() {
			var ref, parent int64
			if err := rows.Scan(&ref, &parent); err != nil {
				rows.Close()
				recordQuery("remove_objects", start, err)
				return nil, err
			}
			if _, ok := doomed[object.ID(ref)]; !ok {
				doomed[object.ID(ref)] = struct{}{}
				changed[object.ID(parent)] = struct{}{}
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			recordQuery("remove_objects", start, err)
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("remove_objects", start, err)
		return nil, err
	}
	for id := range doomed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM objects WHERE id = ?`, int64(id)); err != nil {
			_ = tx.Rollback()
			recordQuery("remove_objects", start, err)
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		recordQuery("remove_objects", start, err)
		return nil, err
	}
	recordQuery("remove_objects", start, nil)

	// Prune virtual containers left empty by the removal, walking upward.
	for id := range changed {
		if err := s.pruneUpward(ctx, id, doomed, changed); err != nil {
			return nil, err
		}
	}

	// Report only containers that still exist.
	for id := range changed {
		if _, gone := doomed[id]; gone {
			delete(changed, id)
		}
	}
	return changed, nil
}

// pruneUpward removes id if it is an empty virtual container, then repeats
// for its parent. Protected containers stop the walk.
func (s *Store) pruneUpward(ctx context.Context, id object.ID, doomed, changed map[object.ID]struct{}) error {
	for id.Valid() && !id.Forbidden() {
		if _, gone := doomed[id]; gone {
			return nil
		}

		var (
			parent  int64
			objType string
			virtual int
		)
		err := s.db.QueryRowContext(ctx,
			`SELECT parent_id, type, virtual FROM objects WHERE id = ?`,
			int64(id)).Scan(&parent, &objType, &virtual)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if objType != string(object.TypeContainer) || virtual == 0 {
			return nil
		}

		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM objects WHERE parent_id = ?`,
			int64(id)).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM objects WHERE id = ?`, int64(id)); err != nil {
			return err
		}
		doomed[id] = struct{}{}
		changed[object.ID(parent)] = struct{}{}
		id = object.ID(parent)
	}
	return nil
}
