// Package metrics provides Prometheus instrumentation for the media-sync service.
//
// This package defines and exposes various metrics that can be scraped by
// Prometheus to monitor the health, performance, and behavior of the
// service. All metrics are prefixed with "media_sync_" to avoid naming
// collisions with other applications.
//
// # Metric Categories
//
// The metrics are organized into the following categories:
//
// ## HTTP Metrics
//
// Track HTTP request performance and error rates:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
// Monitor database query performance:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBConnectionsOpen: Gauge of open database connections
//
// ## Scheduler Metrics
//
// Track the background task queue:
//   - TasksQueued: Gauge of queued tasks by priority tier
//   - TasksTotal: Counter of executed tasks by kind and status
//   - TaskDuration: Histogram of task execution time by kind
//   - SchedulerRunning: Gauge indicating if the worker is running
//
// ## Scan Metrics
//
// Track directory scanning:
//   - ScanRunsTotal: Counter of scan runs by trigger mode
//   - ScanDuration: Histogram of scan duration
//   - ScanObjectsAdded, ScanObjectsRemoved: Counters of tree mutations
//   - ScanErrors: Counter of scan errors
//
// ## Autoscan and Watcher Metrics
//
// Monitor change detection:
//   - AutoscanDirectories: Gauge of registered autoscans by mode
//   - WatcherEventsTotal: Counter of filesystem events by kind
//   - WatcherErrors: Counter of watcher errors
//   - WatchedDirectories: Gauge of directories under watch
//
// ## Container Chain Metrics
//
// Monitor the virtual container cache:
//   - ContainerChainCacheHits, ContainerChainCacheMisses: cache counters
//   - ContainersCreated: Counter of containers materialized
//
// ## Filesystem Metrics
//
// Monitor filesystem operation reliability (fed through the filesystem
// package's Observer hook):
//   - FilesystemOperationDuration, FilesystemOperationErrors
//   - FilesystemRetryAttempts, FilesystemRetryFailures, FilesystemStaleErrors
//
// ## Library Metrics
//
//   - LibraryItemsTotal: Gauge of items by class
//   - LibraryContainersTotal: Gauge of total containers
//
// ## Application Info
//
//   - AppInfo: Gauge with version, commit, and Go version labels
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. To expose them, mount the promhttp.Handler() on your
// metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Collector
//
// The package provides a [Collector] type that periodically gathers
// statistics from a [StatsProvider] and updates the corresponding gauges:
//
//	collector := metrics.NewCollector(statsProvider, 30*time.Second)
//	collector.Start()
//	defer collector.Stop()
package metrics
