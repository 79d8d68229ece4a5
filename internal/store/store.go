package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store persists the virtual content tree and autoscan configuration in
// SQLite. All read paths take the read lock; structural mutations take the
// write lock so tree invariants hold across multi-statement operations.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (or creates) the database at dbPath and initializes the schema.
// dbPath must be the full path to the database file and its parent directory
// must already exist; use startup.LoadConfig to validate that beforehand.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent readers from tripping
	// "database is locked" errors during scans.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Virtual content tree: items and containers share one table.
	CREATE TABLE IF NOT EXISTS objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id INTEGER NOT NULL,
		ref_id INTEGER NOT NULL DEFAULT -1,
		type TEXT NOT NULL,
		class TEXT NOT NULL,
		title TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		virtual INTEGER NOT NULL DEFAULT 0,
		flags INTEGER NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		resources TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_objects_parent ON objects(parent_id);
	CREATE INDEX IF NOT EXISTS idx_objects_ref ON objects(ref_id);
	CREATE INDEX IF NOT EXISTS idx_objects_class ON objects(class);

	-- Physical objects are keyed by their on-disk path.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_objects_location
		ON objects(location) WHERE location <> '' AND virtual = 0;

	-- One container per title under a given parent.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_objects_container_child
		ON objects(parent_id, title) WHERE type = 'container';

	-- Autoscan configuration, including persisted scan watermarks.
	CREATE TABLE IF NOT EXISTS autoscans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		object_id INTEGER NOT NULL DEFAULT -1,
		location TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL,
		recursive INTEGER NOT NULL DEFAULT 0,
		hidden INTEGER NOT NULL DEFAULT 0,
		persistent INTEGER NOT NULL DEFAULT 0,
		interval_sec INTEGER NOT NULL DEFAULT 0,
		watermarks TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_autoscans_object ON autoscans(object_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return s.ensureRoots(ctx)
}

// ensureRoots seeds the two synthetic containers every tree hangs off:
// the virtual root and the filesystem root below it.
func (s *Store) ensureRoots(ctx context.Context) error {
	roots := []struct {
		id     object.ID
		parent object.ID
		title  string
	}{
		{object.RootID, object.InvalidID, "Root"},
		{object.FsRootID, object.RootID, "Filesystem"},
	}

	for _, r := range roots {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO objects (id, parent_id, ref_id, type, class, title, virtual)
			VALUES (?, ?, -1, ?, ?, ?, 1)`,
			int64(r.id), int64(r.parent), string(object.TypeContainer), string(object.ClassContainer), r.title,
		)
		if err != nil {
			return fmt.Errorf("failed to seed container %q: %w", r.title, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics refreshes connection-pool gauges.
func (s *Store) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}
