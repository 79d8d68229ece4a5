package store

import (
	"context"
	"strings"
	"time"

	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/object"
)

// GetStats implements metrics.StatsProvider by counting library objects
// per class. Virtual copies are excluded so one file counts once.
func (s *Store) GetStats() metrics.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT class, COUNT(*) FROM objects
		WHERE type = 'item' AND virtual = 0
		GROUP BY class`)
	if err != nil {
		recordQuery("stats", start, err)
		logging.Warn("Failed to collect library stats: %v", err)
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var (
			class string
			count int
		)
		if err := rows.Scan(&class, &count); err != nil {
			recordQuery("stats", start, err)
			logging.Warn("Failed to scan library stats: %v", err)
			return stats
		}
		stats.TotalItems += count
		switch {
		case class == string(object.ClassPlaylistItem):
			stats.TotalPlaylists += count
		case strings.HasPrefix(class, "object.item.imageItem"):
			stats.TotalImages += count
		case strings.HasPrefix(class, "object.item.videoItem"):
			stats.TotalVideos += count
		case strings.HasPrefix(class, "object.item.audioItem"):
			stats.TotalAudio += count
		}
	}
	if err := rows.Err(); err != nil {
		recordQuery("stats", start, err)
		logging.Warn("Failed to read library stats: %v", err)
		return stats
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM objects WHERE type = 'container'`).
		Scan(&stats.TotalContainers)
	recordQuery("stats", start, err)
	if err != nil {
		logging.Warn("Failed to count containers: %v", err)
	}
	return stats
}
