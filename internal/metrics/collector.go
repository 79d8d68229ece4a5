package metrics

import (
	"time"

	"media-sync/internal/logging"
)

// StatsProvider interface for collecting store statistics
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current store statistics
type Stats struct {
	TotalItems      int
	TotalContainers int
	TotalImages     int
	TotalVideos     int
	TotalAudio      int
	TotalPlaylists  int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	LibraryItemsTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
	LibraryItemsTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	LibraryItemsTotal.WithLabelValues("audio").Set(float64(stats.TotalAudio))
	LibraryItemsTotal.WithLabelValues("playlist").Set(float64(stats.TotalPlaylists))
	LibraryContainersTotal.Set(float64(stats.TotalContainers))

	logging.Debug("Metrics collected: items=%d, containers=%d",
		stats.TotalItems, stats.TotalContainers)
}
