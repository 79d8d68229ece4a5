package content

import (
	"context"
	"fmt"
	"sync"
	"time"

	"media-sync/internal/autoscan"
	"media-sync/internal/filesystem"
	"media-sync/internal/layout"
	"media-sync/internal/logging"
	"media-sync/internal/media"
	"media-sync/internal/metrics"
	"media-sync/internal/monitor"
	"media-sync/internal/object"
	"media-sync/internal/scheduler"
	"media-sync/internal/store"
	"media-sync/internal/timer"
)

const autoscanTimerKind = "autoscan"

// Notifier receives change events for consumers keeping derived views of
// the tree (browse caches, connected clients). A nil notifier is valid.
type Notifier interface {
	ContainersChanged(ids []object.ID)
}

// Config carries the import policy knobs.
type Config struct {
	// FollowSymlinks controls whether symlinked files are imported.
	FollowSymlinks bool
	// HiddenFiles controls whether dotfiles are imported by default.
	// Per-autoscan settings override it.
	HiddenFiles bool
	// LastPlayedMax caps the recently-played list.
	LastPlayedMax int
	// ArtNames overrides the cover image filenames probed for container art.
	ArtNames []string
	// ArtParentCount is how many parent directories are probed for art
	// beyond an item's own directory.
	ArtParentCount int
	// ArtMinDepth is the minimum depth below the scan root an art probe
	// may climb to.
	ArtMinDepth int
	// PlayedMimePrefixes restricts the played flag to items whose MIME
	// type matches one of the prefixes. Empty means every item.
	PlayedMimePrefixes []string
	// Retry is the filesystem retry policy for scan I/O.
	Retry filesystem.RetryConfig
}

// Manager is the content facade: the single entry point for imports,
// removals, rescans and autoscan administration. It owns the task
// scheduler, the timer, the change monitor and the container chain cache;
// autoscan registry mutations are serialized through its lock.
type Manager struct {
	cfg      Config
	store    *store.Store
	sched    *scheduler.Scheduler
	clock    *timer.Timer
	watch    *monitor.Monitor
	layout   layout.Layout
	art      *media.ArtLocator
	notifier Notifier

	mu          sync.Mutex
	autoscans   *autoscan.List
	timerTokens map[int]timer.Token

	chainMu      sync.Mutex
	containerMap map[string]object.ID

	playedMu   sync.Mutex
	lastPlayed []object.ID
}

// NewManager wires the facade. Call Start to begin processing; Shutdown
// drains the scheduler and commits scan watermarks.
func NewManager(cfg Config, st *store.Store, notifier Notifier) (*Manager, error) {
	if cfg.LastPlayedMax <= 0 {
		cfg.LastPlayedMax = 5
	}

	m := &Manager{
		cfg:          cfg,
		store:        st,
		sched:        scheduler.New(),
		clock:        timer.New(),
		notifier:     notifier,
		autoscans:    autoscan.NewList(),
		timerTokens:  make(map[int]timer.Token),
		containerMap: make(map[string]object.ID),
	}
	m.layout = layout.NewBuiltin(m)
	m.art = media.NewArtLocator(cfg.ArtNames)
	m.art.SetSearchBounds(cfg.ArtParentCount, cfg.ArtMinDepth)

	watch, err := monitor.New(m.onWatchScan, m.onWatchRootRemoved)
	if err != nil {
		return nil, fmt.Errorf("failed to create change monitor: %w", err)
	}
	m.watch = watch

	return m, nil
}

// Start launches the worker, the monitor, and re-registers persisted
// autoscan directories.
func (m *Manager) Start(ctx context.Context) error {
	m.sched.Start()
	m.watch.Start()
	return m.loadAutoscans(ctx)
}

// Shutdown stops all background work and persists scan watermarks of the
// registered autoscans so the next run resumes incrementally.
func (m *Manager) Shutdown(ctx context.Context) {
	m.sched.Shutdown()
	m.watch.Shutdown()
	m.clock.Shutdown()

	m.mu.Lock()
	dirs := m.autoscans.All()
	m.mu.Unlock()

	for _, d := range dirs {
		d.UpdateLMT()
		if err := m.store.SaveAutoscan(ctx, d); err != nil {
			logging.Warn("Failed to persist autoscan state for %s: %v", d.Location(), err)
		}
	}
	logging.Info("Content manager stopped")
}

// Scheduler exposes the task queue for status endpoints.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.sched
}

// Autoscans returns copies of all registered autoscan directories.
func (m *Manager) Autoscans() []*autoscan.Directory {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirs := m.autoscans.All()
	out := make([]*autoscan.Directory, len(dirs))
	for i, d := range dirs {
		out[i] = d.Copy()
	}
	return out
}

// GetAutoscan returns a copy of the autoscan at scanID, or nil.
func (m *Manager) GetAutoscan(scanID int) *autoscan.Directory {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.autoscans.Get(scanID)
	if d == nil {
		return nil
	}
	return d.Copy()
}

// SetAutoscanDirectory registers a new autoscan or updates the one already
// covering d's location. Nesting one autoscan inside another is rejected.
// Registration queues an immediate first scan.
func (m *Manager) SetAutoscanDirectory(ctx context.Context, d *autoscan.Directory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.autoscans.GetByLocation(d.Location()); existing != nil {
		m.unregister(existing)
		metrics.AutoscanDirectories.WithLabelValues(string(existing.Mode())).Dec()

		existing.SetMode(d.Mode())
		existing.SetRecursive(d.Recursive())
		existing.SetHidden(d.Hidden())
		existing.SetInterval(d.Interval())

		if err := m.store.SaveAutoscan(ctx, existing); err != nil {
			return err
		}
		if err := m.register(existing); err != nil {
			return err
		}
		metrics.AutoscanDirectories.WithLabelValues(string(existing.Mode())).Inc()
		m.queueRescan(existing, existing.Location())
		return nil
	}

	if over := m.autoscans.FindOverlap(d.Location()); over != nil {
		return fmt.Errorf("autoscan %s overlaps existing autoscan %s", d.Location(), over.Location())
	}

	if _, err := filesystem.Stat(d.Location(), m.cfg.Retry); err != nil {
		return fmt.Errorf("autoscan location %s is not accessible: %w", d.Location(), err)
	}

	id, err := m.store.EnsurePathExistence(ctx, d.Location(), d.Location())
	if err != nil {
		return fmt.Errorf("failed to create container for %s: %w", d.Location(), err)
	}
	d.SetObjectID(id)

	if err := m.store.SaveAutoscan(ctx, d); err != nil {
		return err
	}
	if err := m.autoscans.Add(d); err != nil {
		return err
	}
	if err := m.register(d); err != nil {
		m.autoscans.Remove(d.ScanID())
		return err
	}

	metrics.AutoscanDirectories.WithLabelValues(string(d.Mode())).Inc()
	logging.Info("Autoscan registered: %s (%s, recursive=%t)", d.Location(), d.Mode(), d.Recursive())
	m.queueRescan(d, d.Location())
	return nil
}

// RemoveAutoscanDirectory deletes the autoscan at scanID. In-flight scans
// for it abort at their next checkpoint; queued rescans are invalidated.
func (m *Manager) RemoveAutoscanDirectory(ctx context.Context, scanID int) error {
	m.mu.Lock()
	d := m.autoscans.Get(scanID)
	if d == nil {
		m.mu.Unlock()
		return fmt.Errorf("no autoscan with ID %d", scanID)
	}
	m.unregister(d)
	m.autoscans.Remove(scanID)
	m.mu.Unlock()

	m.invalidateScanTasks(scanID)
	metrics.AutoscanDirectories.WithLabelValues(string(d.Mode())).Dec()

	if d.DatabaseID() > 0 {
		if err := m.store.RemoveAutoscan(ctx, d.DatabaseID()); err != nil {
			return err
		}
	}
	logging.Info("Autoscan removed: %s", d.Location())
	return nil
}

// register places d on its trigger source. Caller holds m.mu.
func (m *Manager) register(d *autoscan.Directory) error {
	switch d.Mode() {
	case autoscan.ModeTimed:
		token := m.clock.Subscribe(d.Interval(), false,
			timer.Parameter{Kind: autoscanTimerKind, ScanID: d.ScanID()}, m.timerNotify)
		m.timerTokens[d.ScanID()] = token
	case autoscan.ModeWatch:
		if err := m.watch.Monitor(d.Location()); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d.Location(), err)
		}
	default:
		return fmt.Errorf("unknown autoscan mode %q", d.Mode())
	}
	return nil
}

// unregister detaches d from its trigger source. Caller holds m.mu.
func (m *Manager) unregister(d *autoscan.Directory) {
	switch d.Mode() {
	case autoscan.ModeTimed:
		if token, ok := m.timerTokens[d.ScanID()]; ok {
			m.clock.Unsubscribe(token)
			delete(m.timerTokens, d.ScanID())
		}
	case autoscan.ModeWatch:
		m.watch.Unmonitor(d.Location())
	}
}

// timerNotify handles a timed-autoscan tick. A directory that is already
// scanning or has a rescan queued is skipped; the next tick retries.
func (m *Manager) timerNotify(p timer.Parameter) {
	if p.Kind != autoscanTimerKind {
		return
	}

	m.mu.Lock()
	d := m.autoscans.Get(p.ScanID)
	m.mu.Unlock()
	if d == nil {
		return
	}
	if d.Busy() {
		logging.Debug("Skipping scan of %s: previous scan still active", d.Location())
		return
	}
	m.queueRescan(d, d.Location())
}

// queueRescan enqueues a low-priority rescan for path within d's scan.
func (m *Manager) queueRescan(d *autoscan.Directory, path string) {
	d.IncTaskCount()
	task := newRescanTask(m, d, d.ScanID(), path)
	if id := m.sched.Enqueue(task, true); id == 0 {
		d.DecTaskCount()
	}
}

// RescanDirectory queues a rescan of the autoscan at scanID, optionally of
// a single subdirectory.
func (m *Manager) RescanDirectory(scanID int, path string) error {
	m.mu.Lock()
	d := m.autoscans.Get(scanID)
	m.mu.Unlock()
	if d == nil {
		return fmt.Errorf("no autoscan with ID %d", scanID)
	}
	if path == "" {
		path = d.Location()
	}
	if !autoscan.IsSubdir(path, d.Location()) {
		return fmt.Errorf("path %s is outside autoscan %s", path, d.Location())
	}
	m.queueRescan(d, path)
	return nil
}

// invalidateScanTasks marks pending and running rescans of scanID invalid.
func (m *Manager) invalidateScanTasks(scanID int) {
	m.sched.InvalidateWhere(func(t scheduler.Task) bool {
		rt, ok := t.(*rescanTask)
		return ok && rt.scanID == scanID
	})
}

/// onWatchScan is the monitor callback: a directory under a watch-mode
// autoscan changed and settled.
func (m *Manager) onWatchScan(dir string) {
	root := m.watch.RootFor(dir)
	if root == "" {
		return
	}
	m.mu.Lock()
	d := m.autoscans.GetByLocation(root)
	m.mu.Unlock()
	if d == nil {
		return
	}
	if d.Busy() {
		logging.Debug("Skipping scan of %s: previous scan still active", dir)
		return
	}
	m.queueRescan(d, dir)
}

// onWatchRootRemoved is the monitor callback for a vanished watch root.
func (m *Manager) onWatchRootRemoved(root string) {
	m.mu.Lock()
	d := m.autoscans.GetByLocation(root)
	m.mu.Unlock()
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.handleLostLocation(ctx, d)
}

// handleLostLocation deals with an autoscan whose directory disappeared.
// Persistent autoscans are demoted to orphans so they re-resolve if the
// directory returns; transient ones are dropped. The container subtree is
// removed either way.
func (m *Manager) handleLostLocation(ctx context.Context, d *autoscan.Directory) {
	logging.Warn("Autoscan location vanished: %s", d.Location())

	objectID := d.ObjectID()

	m.mu.Lock()
	registered := m.autoscans.Get(d.ScanID()) == d
	if registered {
		m.unregister(d)
	}
	if d.Persistent() {
		d.SetObjectID(object.InvalidID)
		d.ResetLMT()
	} else if registered {
		m.autoscans.Remove(d.ScanID())
	}
	m.mu.Unlock()

	m.invalidateScanTasks(d.ScanID())

	if d.Persistent() {
		if d.DatabaseID() > 0 {
			if err := m.store.OrphanAutoscan(ctx, d.DatabaseID()); err != nil {
				logging.Error("Failed to orphan autoscan %s: %v", d.Location(), err)
			}
		}
	} else {
		metrics.AutoscanDirectories.WithLabelValues(string(d.Mode())).Dec()
		if d.DatabaseID() > 0 {
			if err := m.store.RemoveAutoscan(ctx, d.DatabaseID()); err != nil {
				logging.Error("Failed to remove autoscan %s: %v", d.Location(), err)
			}
		}
	}

	if objectID.Valid() && !objectID.Forbidden() {
		changed, err := m.store.RemoveObject(ctx, objectID, true)
		if err != nil {
			logging.Error("Failed to remove container for %s: %v", d.Location(), err)
			return
		}
		m.clearChainCache()
		m.notifyChanged(changed)
	}
}

// loadAutoscans restores persisted autoscans at startup. Orphaned entries
// are re-resolved when their directory exists again; otherwise they stay
// dormant until the next start.
func (m *Manager) loadAutoscans(ctx context.Context) error {
	dirs, err := m.store.LoadAutoscans(ctx)
	if err != nil {
		return err
	}

	for _, d := range dirs {
		if _, statErr := filesystem.Stat(d.Location(), m.cfg.Retry); statErr != nil {
			if d.Persistent() {
				if d.ObjectID().Valid() {
					logging.Warn("Autoscan location missing, orphaning: %s", d.Location())
					d.SetObjectID(object.InvalidID)
					d.ResetLMT()
					if err := m.store.OrphanAutoscan(ctx, d.DatabaseID()); err != nil {
						logging.Error("Failed to orphan autoscan %s: %v", d.Location(), err)
					}
				} else {
					logging.Info("Autoscan still orphaned: %s", d.Location())
				}
			} else {
				logging.Warn("Dropping autoscan with missing location: %s", d.Location())
				if err := m.store.RemoveAutoscan(ctx, d.DatabaseID()); err != nil {
					logging.Error("Failed to remove autoscan %s: %v", d.Location(), err)
				}
			}
			continue
		}

		if !d.ObjectID().Valid() {
			// Orphan whose directory came back.
			id, err := m.store.EnsurePathExistence(ctx, d.Location(), d.Location())
			if err != nil {
				logging.Error("Failed to re-resolve autoscan %s: %v", d.Location(), err)
				continue
			}
			logging.Info("Autoscan re-resolved: %s", d.Location())
			d.SetObjectID(id)
			if err := m.store.SaveAutoscan(ctx, d); err != nil {
				logging.Error("Failed to save autoscan %s: %v", d.Location(), err)
			}
		}

		m.mu.Lock()
		err = m.autoscans.Add(d)
		if err == nil {
			err = m.register(d)
		}
		m.mu.Unlock()
		if err != nil {
			logging.Error("Failed to restore autoscan %s: %v", d.Location(), err)
			continue
		}

		metrics.AutoscanDirectories.WithLabelValues(string(d.Mode())).Inc()
		logging.Info("Autoscan restored: %s (%s)", d.Location(), d.Mode())
		m.queueRescan(d, d.Location())
	}
	return nil
}

// EnsureAutoscan registers a persistent autoscan for location unless one
// already covers it. Used for configuration-defined scan roots.
func (m *Manager) EnsureAutoscan(ctx context.Context, location string, mode autoscan.Mode, recursive bool, interval time.Duration) error {
	m.mu.Lock()
	existing := m.autoscans.FindOverlap(location)
	m.mu.Unlock()
	if existing != nil {
		return nil
	}
	d := autoscan.New(location, mode, recursive, m.cfg.HiddenFiles, true, interval)
	return m.SetAutoscanDirectory(ctx, d)
}

// ObjectEdit is a partial object update. Zero-valued fields are left as
// they are: an empty Title keeps the stored title, and metadata keys that
// are absent from Metadata stay untouched. A metadata key mapped to an
// empty string is removed.
type ObjectEdit struct {
	Title    string
	Metadata map[string]string
}

// UpdateObject applies edit to the stored object and persists the result
// only when some field actually changed. An edit that sets nothing, or
// sets every field to its current value, neither writes nor notifies.
func (m *Manager) UpdateObject(ctx context.Context, id object.ID, edit ObjectEdit) error {
	current, err := m.store.LoadObject(ctx, id)
	if err != nil {
		return err
	}

	updated := current.Clone()
	if edit.Title != "" {
		updated.Title = edit.Title
	}
	for key, value := range edit.Metadata {
		if value == "" {
			delete(updated.Metadata, key)
			continue
		}
		if updated.Metadata == nil {
			updated.Metadata = make(map[string]string)
		}
		updated.Metadata[key] = value
	}

	if current.Equals(updated) {
		logging.Debug("Object %d unchanged, skipping update", id)
		return nil
	}
	if err := m.store.UpdateObject(ctx, updated); err != nil {
		return err
	}
	m.notifyChanged(map[object.ID]struct{}{updated.ParentID: {}})
	return nil
}

func (m *Manager) notifyChanged(ids map[object.ID]struct{}) {
	if m.notifier == nil || len(ids) == 0 {
		return
	}
	out := make([]object.ID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	m.notifier.ContainersChanged(out)
}
