package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"media-sync/internal/object"
)

// AddContainerChain materializes a chain of virtual containers below RootID.
// Each element supplies the title, class and container metadata for one
// level; existing levels are reused, missing ones are created. It returns
// the ID of the deepest container and the IDs of every container created.
func (s *Store) AddContainerChain(ctx context.Context, chain []*object.Object) (object.ID, []object.ID, error) {
	if len(chain) == 0 {
		return object.InvalidID, nil, fmt.Errorf("empty container chain")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	parent := object.RootID
	var created []object.ID

	for _, c := range chain {
		if c.Title == "" {
			err := fmt.Errorf("container chain element has no title")
			recordQuery("add_container_chain", start, err)
			return object.InvalidID, nil, err
		}

		id, err := s.findContainerChild(ctx, parent, c.Title)
		if err != nil && err != ErrNotFound {
			recordQuery("add_container_chain", start, err)
			return object.InvalidID, nil, err
		}
		if err == ErrNotFound {
			cont := &object.Object{
				ParentID: parent,
				RefID:    object.InvalidID,
				Type:     object.TypeContainer,
				Class:    c.Class,
				Title:    c.Title,
				Virtual:  true,
				Metadata: c.Metadata,
			}
			if cont.Class == "" {
				cont.Class = object.ClassContainer
			}
			if err := s.insertObject(ctx, cont); err != nil {
				recordQuery("add_container_chain", start, err)
				return object.InvalidID, nil, err
			}
			id = cont.ID
			created = append(created, id)
		}
		parent = id
	}

	recordQuery("add_container_chain", start, nil)
	return parent, created, nil
}

// EnsurePathExistence guarantees that physical containers exist for every
// directory component of path below root (an autoscan location). It returns
// the container ID for path itself.
func (s *Store) EnsurePathExistence(ctx context.Context, root, path string) (object.ID, error) {
	root = filepath.Clean(root)
	path = filepath.Clean(path)

	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return object.InvalidID, fmt.Errorf("path %s is outside %s", path, root)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	parent := object.FsRootID

	// The root directory itself hangs directly off the filesystem root.
	components := []string{root}
	if path != root {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			recordQuery("ensure_path", start, err)
			return object.InvalidID, err
		}
		components = append(components, strings.Split(rel, string(filepath.Separator))...)
	}

	location := ""
	for i, comp := range components {
		if i == 0 {
			location = root
		} else {
			location = filepath.Join(location, comp)
		}

		id, err := s.findPhysicalChild(ctx, location)
		if err != nil && err != ErrNotFound {
			recordQuery("ensure_path", start, err)
			return object.InvalidID, err
		}
		if err == ErrNotFound {
			cont := &object.Object{
				ParentID: parent,
				RefID:    object.InvalidID,
				Type:     object.TypeContainer,
				Class:    object.ClassFolder,
				Title:    filepath.Base(location),
				Location: location,
			}
			if err := s.insertObject(ctx, cont); err != nil {
				recordQuery("ensure_path", start, err)
				return object.InvalidID, err
			}
			id = cont.ID
		}
		parent = id
	}

	recordQuery("ensure_path", start, nil)
	return parent, nil
}

func (s *Store) findContainerChild(ctx context.Context, parent object.ID, title string) (object.ID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM objects WHERE parent_id = ? AND title = ? AND type = 'container'`,
		int64(parent), title).Scan(&id)
	if err == sql.ErrNoRows {
		return object.InvalidID, ErrNotFound
	}
	if err != nil {
		return object.InvalidID, err
	}
	return object.ID(id), nil
}

func (s *Store) findPhysicalChild(ctx context.Context, location string) (object.ID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM objects WHERE location = ? AND virtual = 0`, location).Scan(&id)
	if err == sql.ErrNoRows {
		return object.InvalidID, ErrNotFound
	}
	if err != nil {
		return object.InvalidID, err
	}
	return object.ID(id), nil
}
