package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"media-sync/internal/autoscan"
	"media-sync/internal/object"
)

// SaveAutoscan inserts or updates the persisted form of d, keyed by
// location. On insert, the new database ID is assigned to d.
func (s *Store) SaveAutoscan(ctx context.Context, d *autoscan.Directory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	marks := make(map[string]int64)
	for path, t := range d.Watermarks() {
		marks[path] = t.Unix()
	}
	watermarks, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("failed to encode watermarks: %w", err)
	}

	boolInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	start := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO autoscans (object_id, location, mode, recursive, hidden,
			persistent, interval_sec, watermarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			object_id = excluded.object_id,
			mode = excluded.mode,
			recursive = excluded.recursive,
			hidden = excluded.hidden,
			persistent = excluded.persistent,
			interval_sec = excluded.interval_sec,
			watermarks = excluded.watermarks,
			updated_at = strftime('%s', 'now')`,
		int64(d.ObjectID()), d.Location(), string(d.Mode()),
		boolInt(d.Recursive()), boolInt(d.Hidden()), boolInt(d.Persistent()),
		int64(d.Interval().Seconds()), string(watermarks),
	)
	recordQuery("save_autoscan", start, err)
	if err != nil {
		return fmt.Errorf("failed to save autoscan for %s: %w", d.Location(), err)
	}

	if d.DatabaseID() <= 0 {
		if id, err := result.LastInsertId(); err == nil && id > 0 {
			d.SetDatabaseID(id)
		} else {
			// Upsert hit the conflict branch; fetch the existing row ID.
			var existing int64
			if err := s.db.QueryRowContext(ctx,
				`SELECT id FROM autoscans WHERE location = ?`,
				d.Location()).Scan(&existing); err == nil {
				d.SetDatabaseID(existing)
			}
		}
	}
	return nil
}

// RemoveAutoscan deletes the persisted autoscan row.
func (s *Store) RemoveAutoscan(ctx context.Context, databaseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM autoscans WHERE id = ?`, databaseID)
	recordQuery("remove_autoscan", start, err)
	if err != nil {
		return fmt.Errorf("failed to remove autoscan %d: %w", databaseID, err)
	}
	return nil
}

// OrphanAutoscan clears the object binding of a persisted autoscan whose
// monitored directory disappeared. The row survives so the scan can be
// re-resolved when the directory returns.
func (s *Store) OrphanAutoscan(ctx context.Context, databaseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE autoscans SET object_id = ?, watermarks = '{}',
			updated_at = strftime('%s', 'now')
		WHERE id = ?`,
		int64(object.InvalidID), databaseID)
	recordQuery("orphan_autoscan", start, err)
	if err != nil {
		return fmt.Errorf("failed to orphan autoscan %d: %w", databaseID, err)
	}
	return nil
}

// LoadAutoscans returns all persisted autoscan directories with their
// watermarks restored. Loaded directories are marked persistent.
func (s *Store) LoadAutoscans(ctx context.Context) ([]*autoscan.Directory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, object_id, location, mode, recursive, hidden, persistent,
			interval_sec, watermarks
		FROM autoscans ORDER BY location`)
	recordQuery("load_autoscans", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load autoscans: %w", err)
	}
	defer rows.Close()

	var dirs []*autoscan.Directory
	for rows.Next() {
		d, err := scanAutoscanRow(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// FindAutoscanByLocation returns the persisted autoscan for location with
// its watermarks restored, or ErrNotFound.
func (s *Store) FindAutoscanByLocation(ctx context.Context, location string) (*autoscan.Directory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, object_id, location, mode, recursive, hidden, persistent,
			interval_sec, watermarks
		FROM autoscans WHERE location = ?`, location)
	d, err := scanAutoscanRow(row)
	recordQuery("find_autoscan", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// scanAutoscanRow rebuilds one autoscan directory from a row of the
// autoscans table.
func scanAutoscanRow(row interface{ Scan(...interface{}) error }) (*autoscan.Directory, error) {
	var (
		id          int64
		objectID    int64
		location    string
		mode        string
		recursive   int
		hidden      int
		persistent  int
		intervalSec int64
		watermarks  string
	)
	if err := row.Scan(&id, &objectID, &location, &mode, &recursive,
		&hidden, &persistent, &intervalSec, &watermarks); err != nil {
		return nil, err
	}

	d := autoscan.New(location, autoscan.Mode(mode), recursive != 0,
		hidden != 0, persistent != 0, time.Duration(intervalSec)*time.Second)
	d.SetDatabaseID(id)
	d.SetObjectID(object.ID(objectID))

	var raw map[string]int64
	if err := json.Unmarshal([]byte(watermarks), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode watermarks for %s: %w", location, err)
	}
	marks := make(map[string]time.Time, len(raw))
	for path, unix := range raw {
		marks[path] = time.Unix(unix, 0)
	}
	d.RestoreWatermarks(marks)
	return d, nil
}
