package autoscan

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-sync/internal/object"
)

// Mode selects how a monitored directory is rescanned.
type Mode string

const (
	// ModeTimed rescans on a fixed interval.
	ModeTimed Mode = "timed"
	// ModeWatch rescans on filesystem change notifications.
	ModeWatch Mode = "watch"
)

// InvalidScanID marks a directory that has been retired from its registry.
// In-flight scans observing it must stop without touching the removal
// accounting.
const InvalidScanID = -1

// Directory is one monitored autoscan root. It is shared between the
// registry, the change monitor, and in-flight tasks, so all mutable state is
// guarded.
type Directory struct {
	location   string
	persistent bool

	mu         sync.Mutex
	mode       Mode
	recursive  bool
	hidden     bool
	interval   time.Duration
	objectID   object.ID
	scanID     int
	databaseID int64

	taskCount   atomic.Int32
	activeScans atomic.Int32

	// Per-subpath modification time watermarks. current accumulates during
	// a scan; previous is what watermark comparisons read, promoted from
	// current only when a scan finishes (possibly partially).
	current  map[string]time.Time
	previous map[string]time.Time
}

// New creates an autoscan directory record. The location is cleaned; the
// object ID starts invalid and is resolved lazily on first scan.
func New(location string, mode Mode, recursive, hidden, persistent bool, interval time.Duration) *Directory {
	return &Directory{
		location:   filepath.Clean(location),
		mode:       mode,
		recursive:  recursive,
		hidden:     hidden,
		persistent: persistent,
		interval:   interval,
		objectID:   object.InvalidID,
		scanID:     InvalidScanID,
		databaseID: -1,
		current:    make(map[string]time.Time),
		previous:   make(map[string]time.Time),
	}
}

func (d *Directory) Location() string { return d.location }
func (d *Directory) Persistent() bool { return d.persistent }

// Mode, Recursive and Hidden are read by in-flight scans while an update
// request may be rewriting them, so they share the config lock.

func (d *Directory) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Directory) Recursive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recursive
}

func (d *Directory) Hidden() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hidden
}

// Interval returns the rescan interval (timed mode only).
func (d *Directory) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// ObjectID returns the store object ID backing this root, or
// object.InvalidID while unresolved or orphaned.
func (d *Directory) ObjectID() object.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objectID
}

// SetObjectID records the resolved store object ID.
func (d *Directory) SetObjectID(id object.ID) {
	d.mu.Lock()
	d.objectID = id
	d.mu.Unlock()
}

// ScanID returns the registry slot, or InvalidScanID once retired.
func (d *Directory) ScanID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanID
}

func (d *Directory) setScanID(id int) {
	d.mu.Lock()
	d.scanID = id
	d.mu.Unlock()
}

// DatabaseID returns the persistence row ID, or -1 if never persisted.
func (d *Directory) DatabaseID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.databaseID
}

// SetDatabaseID records the persistence row ID.
func (d *Directory) SetDatabaseID(id int64) {
	d.mu.Lock()
	d.databaseID = id
	d.mu.Unlock()
}

// Task and scan counters guard against overlapping rescans: the timer and
// change-notification callbacks refuse to fire while either is non-zero.

func (d *Directory) IncTaskCount()    { d.taskCount.Add(1) }
func (d *Directory) DecTaskCount()    { d.taskCount.Add(-1) }
func (d *Directory) TaskCount() int32 { return d.taskCount.Load() }

func (d *Directory) IncActiveScans()    { d.activeScans.Add(1) }
func (d *Directory) DecActiveScans()    { d.activeScans.Add(-1) }
func (d *Directory) ActiveScans() int32 { return d.activeScans.Load() }

// Busy reports whether a scan or queued task is outstanding for this root.
func (d *Directory) Busy() bool {
	return d.activeScans.Load() > 0 || d.taskCount.Load() > 0
}

// PreviousLMT returns the committed watermark for path: the highest file
// modification time observed by the last finished scan of that subpath.
// Zero if the subpath was never scanned.
func (d *Directory) PreviousLMT(path string) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.previous[filepath.Clean(path)]
}

// SetCurrentLMT records the in-progress watermark for path. It is written by
// at most one scan at a time because the callbacks refuse to fire while a
// scan is outstanding.
func (d *Directory) SetCurrentLMT(path string, t time.Time) {
	d.mu.Lock()
	d.current[filepath.Clean(path)] = t
	d.mu.Unlock()
}

// UpdateLMT promotes the in-progress watermarks into the committed map,
// never regressing an entry. It reports whether anything changed (and so
// whether the directory needs persisting).
func (d *Directory) UpdateLMT() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := false
	for path, t := range d.current {
		if t.After(d.previous[path]) {
			d.previous[path] = t
			changed = true
		}
	}
	clear(d.current)
	return changed
}

// ResetLMT discards all watermarks, forcing the next scan to reprocess
// every file.
func (d *Directory) ResetLMT() {
	d.mu.Lock()
	clear(d.current)
	clear(d.previous)
	d.mu.Unlock()
}

// Watermarks returns a copy of the committed watermark map for persistence.
func (d *Directory) Watermarks() map[string]time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	marks := make(map[string]time.Time, len(d.previous))
	for path, t := range d.previous {
		marks[path] = t
	}
	return marks
}

// RestoreWatermarks loads persisted watermarks, keeping the highest value
// per path.
func (d *Directory) RestoreWatermarks(marks map[string]time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range marks {
		if t.After(d.previous[path]) {
			d.previous[path] = t
		}
	}
}

// Copy returns a detached copy of the directory's configuration with fresh
// counters and the same watermark state.
func (d *Directory) Copy() *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := New(d.location, d.mode, d.recursive, d.hidden, d.persistent, d.interval)
	c.objectID = d.objectID
	c.scanID = d.scanID
	c.databaseID = d.databaseID
	for path, t := range d.previous {
		c.previous[path] = t
	}
	return c
}

// SetMode changes the scan mode. The caller re-registers the directory so
// the trigger source matches.
func (d *Directory) SetMode(mode Mode) {
	d.mu.Lock()
	d.mode = mode
	d.mu.Unlock()
}

// SetRecursive updates the recursion flag.
func (d *Directory) SetRecursive(recursive bool) {
	d.mu.Lock()
	d.recursive = recursive
	d.mu.Unlock()
}

// SetHidden updates the hidden-file policy.
func (d *Directory) SetHidden(hidden bool) {
	d.mu.Lock()
	d.hidden = hidden
	d.mu.Unlock()
}

// SetInterval updates the rescan interval.
func (d *Directory) SetInterval(interval time.Duration) {
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
}

// IsSubdir reports whether path lies at or below root.
func IsSubdir(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// Overlaps reports whether two autoscan roots are nested either way.
// Overlapping roots are rejected at registration.
func Overlaps(a, b string) bool {
	return IsSubdir(a, b) || IsSubdir(b, a)
}
