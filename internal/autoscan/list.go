package autoscan

import (
	"fmt"

	"media-sync/internal/object"
)

// List is one ordered registry of autoscan directories (one per scan mode).
// Slots are reused: a directory's scan ID is its index for the lifetime of
// its registration. List is not safe for concurrent use; callers serialize
// access through the content facade's lock.
type List struct {
	dirs []*Directory
}

// NewList creates an empty registry.
func NewList() *List {
	return &List{}
}

// Add registers a directory and assigns it the first free slot as its scan
// ID. Registering a location twice is an error.
func (l *List) Add(d *Directory) error {
	if existing := l.GetByLocation(d.Location()); existing != nil {
		return fmt.Errorf("autoscan for %s already registered", d.Location())
	}

	for i, slot := range l.dirs {
		if slot == nil {
			l.dirs[i] = d
			d.setScanID(i)
			return nil
		}
	}
	l.dirs = append(l.dirs, d)
	d.setScanID(len(l.dirs) - 1)
	return nil
}

// Get returns the directory in the given slot, or nil.
func (l *List) Get(scanID int) *Directory {
	if scanID < 0 || scanID >= len(l.dirs) {
		return nil
	}
	return l.dirs[scanID]
}

// GetByObjectID returns the directory backed by the given store object, or nil.
func (l *List) GetByObjectID(id object.ID) *Directory {
	for _, d := range l.dirs {
		if d != nil && d.ObjectID() == id {
			return d
		}
	}
	return nil
}

// GetByLocation returns the directory registered for the exact location, or nil.
func (l *List) GetByLocation(location string) *Directory {
	for _, d := range l.dirs {
		if d != nil && d.Location() == location {
			return d
		}
	}
	return nil
}

// FindOverlap returns the first registered directory whose root nests with
// location (either way), or nil.
func (l *List) FindOverlap(location string) *Directory {
	for _, d := range l.dirs {
		if d != nil && Overlaps(d.Location(), location) {
			return d
		}
	}
	return nil
}

// Remove retires the directory in the given slot. Its scan ID is set to
// InvalidScanID so in-flight scans observe the loss of registration and
// abort. Returns the removed directory, or nil.
func (l *List) Remove(scanID int) *Directory {
	d := l.Get(scanID)
	if d == nil {
		return nil
	}
	l.dirs[scanID] = nil
	d.setScanID(InvalidScanID)
	return d
}

// RemoveIfSubdir retires every directory whose location lies at or below
// path and returns them. Used when a parent directory is deleted: the
// removal cascades to nested autoscan roots.
func (l *List) RemoveIfSubdir(path string) []*Directory {
	var removed []*Directory
	for i, d := range l.dirs {
		if d != nil && IsSubdir(d.Location(), path) {
			l.dirs[i] = nil
			d.setScanID(InvalidScanID)
			removed = append(removed, d)
		}
	}
	return removed
}

// All returns the registered directories in slot order, skipping holes.
func (l *List) All() []*Directory {
	out := make([]*Directory, 0, len(l.dirs))
	for _, d := range l.dirs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of registered directories.
func (l *List) Len() int {
	n := 0
	for _, d := range l.dirs {
		if d != nil {
			n++
		}
	}
	return n
}
