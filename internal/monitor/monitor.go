package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-sync/internal/autoscan"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
)

// DefaultDebounce is the default per-directory debounce interval. Editors
// and copy tools emit bursts of events for one logical change; collapsing
// them keeps one scan per burst.
const DefaultDebounce = 500 * time.Millisecond

// ErrNotDirectory indicates a watch target is not a directory.
var ErrNotDirectory = errors.New("watch path is not a directory")

// ScanFunc receives the directory that needs rescanning. It must only
// enqueue work; scans never run on the monitor goroutine.
type ScanFunc func(dir string)

// RemovedFunc is called when a monitored root itself disappears.
type RemovedFunc func(root string)

// Monitor wraps fsnotify to deliver debounced, per-directory rescan
// triggers for change-notification autoscans. Watches are registered
// recursively and extended automatically as new subdirectories appear.
type Monitor struct {
	watcher  *fsnotify.Watcher
	onScan   ScanFunc
	onRemove RemovedFunc
	debounce time.Duration

	mu      sync.Mutex
	roots   map[string]struct{}
	watched map[string]struct{}
	pending map[string]*time.Timer
	started bool
	closed  bool

	done chan struct{}
}

// New creates a monitor delivering scan triggers to onScan and root-removal
// notifications to onRemove. Call Start to begin event processing.
func New(onScan ScanFunc, onRemove RemovedFunc) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Monitor{
		watcher:  watcher,
		onScan:   onScan,
		onRemove: onRemove,
		debounce: DefaultDebounce,
		roots:    make(map[string]struct{}),
		watched:  make(map[string]struct{}),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the debounce interval. Must be called before Start.
func (m *Monitor) SetDebounce(d time.Duration) {
	if d > 0 {
		m.debounce = d
	}
}

// Start launches the event-processing goroutine. Starting twice is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()
	go m.loop()
}

// Monitor places root (and, recursively, its subdirectories) under watch.
func (m *Monitor) Monitor(root string) error {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot monitor %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot monitor %s: %w", root, ErrNotDirectory)
	}

	m.mu.Lock()
	m.roots[root] = struct{}{}
	m.mu.Unlock()

	return m.watchTree(root)
}

// watchTree adds watches for dir and every directory below it. Unreadable
// subdirectories are logged and skipped.
func (m *Monitor) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Watch walk error at %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := m.addWatch(path); err != nil {
			logging.Warn("Failed to watch %s: %v", path, err)
			if path == dir {
				return err
			}
		}
		return nil
	})
}

func (m *Monitor) addWatch(path string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if _, ok := m.watched[path]; ok {
		m.mu.Unlock()
		return nil
	}
	m.watched[path] = struct{}{}
	m.mu.Unlock()

	if err := m.watcher.Add(path); err != nil {
		m.mu.Lock()
		delete(m.watched, path)
		m.mu.Unlock()
		return err
	}
	metrics.WatchedDirectories.Inc()
	logging.Debug("Watching %s", path)
	return nil
}

func (m *Monitor) dropWatch(path string) {
	m.mu.Lock()
	_, ok := m.watched[path]
	if ok {
		delete(m.watched, path)
	}
	m.mu.Unlock()

	if ok {
		// The kernel drops watches on deleted directories by itself;
		// ignore errors for paths that are already gone.
		_ = m.watcher.Remove(path)
		metrics.WatchedDirectories.Dec()
	}
}

// Unmonitor removes the watch on root and every watched directory below it.
func (m *Monitor) Unmonitor(root string) {
	root = filepath.Clean(root)

	m.mu.Lock()
	delete(m.roots, root)
	var below []string
	for path := range m.watched {
		if autoscan.IsSubdir(path, root) {
			below = append(below, path)
		}
	}
	m.mu.Unlock()

	for _, path := range below {
		m.dropWatch(path)
	}
}

func (m *Monitor) loop() {
	defer close(m.done)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(ev)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrors.Inc()
			logging.Error("Watcher error: %v", err)
		}
	}
}

func (m *Monitor) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	logging.Debug("Watcher event: %s %s", ev.Op, path)

	switch {
	case ev.Op.Has(fsnotify.Create):
		metrics.WatcherEventsTotal.WithLabelValues("create").Inc()
		// A new directory extends the watch tree before its contents are
		// picked up by the triggered scan.
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			if err := m.watchTree(path); err != nil {
				logging.Warn("Failed to extend watch to %s: %v", path, err)
			}
		}
		m.scheduleScan(filepath.Dir(path))

	case ev.Op.Has(fsnotify.Write):
		metrics.WatcherEventsTotal.WithLabelValues("write").Inc()
		m.scheduleScan(filepath.Dir(path))

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		kind := "remove"
		if ev.Op.Has(fsnotify.Rename) {
			kind = "rename"
		}
		metrics.WatcherEventsTotal.WithLabelValues(kind).Inc()

		m.mu.Lock()
		_, wasWatched := m.watched[path]
		_, wasRoot := m.roots[path]
		m.mu.Unlock()

		if wasWatched {
			m.dropWatch(path)
		}
		if wasRoot {
			m.mu.Lock()
			delete(m.roots, path)
			m.mu.Unlock()
			if m.onRemove != nil {
				m.onRemove(path)
			}
			return
		}
		m.scheduleScan(filepath.Dir(path))

	case ev.Op.Has(fsnotify.Chmod):
		// Permission changes do not alter content; ignored.
		metrics.WatcherEventsTotal.WithLabelValues("chmod").Inc()
	}
}

// scheduleScan debounces per directory: the first event arms a timer, later
// events within the window reset it, and the scan fires once when the burst
// settles.
func (m *Monitor) scheduleScan(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	// Only trigger for directories under a registered root.
	inRoot := false
	for root := range m.roots {
		if autoscan.IsSubdir(dir, root) {
			inRoot = true
			break
		}
	}
	if !inRoot {
		return
	}

	if t, ok := m.pending[dir]; ok {
		t.Reset(m.debounce)
		return
	}
	m.pending[dir] = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		delete(m.pending, dir)
		closed := m.closed
		m.mu.Unlock()
		if !closed {
			m.onScan(dir)
		}
	})
}

// RootFor returns the registered root containing dir, or "".
func (m *Monitor) RootFor(dir string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for root := range m.roots {
		if autoscan.IsSubdir(dir, root) {
			return root
		}
	}
	return ""
}

// Shutdown stops event processing, cancels pending debounce timers, and
// closes the underlying watcher.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	started := m.started
	for dir, t := range m.pending {
		t.Stop()
		delete(m.pending, dir)
	}
	m.mu.Unlock()

	if err := m.watcher.Close(); err != nil {
		logging.Warn("Watcher close error: %v", err)
	}
	if started {
		<-m.done
	}
}
