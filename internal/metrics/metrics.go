package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Task scheduler metrics
var (
	TasksQueued = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_sync_tasks_queued",
			Help: "Number of tasks currently queued by priority tier",
		},
		[]string{"priority"}, // "normal", "low"
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_tasks_total",
			Help: "Total number of executed tasks",
		},
		[]string{"kind", "status"}, // status: "completed", "failed", "invalidated"
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"kind"},
	)

	SchedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_scheduler_running",
			Help: "Whether the task worker is executing a task (1 = busy, 0 = idle)",
		},
	)
)

// Scan engine metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_scan_runs_total",
			Help: "Total number of directory scans",
		},
		[]string{"mode"}, // "timed", "watch", "manual"
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_sync_scan_duration_seconds",
			Help:    "Directory scan duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	ScanObjectsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_scan_objects_added_total",
			Help: "Total number of objects added by scans",
		},
	)

	ScanObjectsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_scan_objects_removed_total",
			Help: "Total number of objects removed by scans",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_scan_errors_total",
			Help: "Total number of scan errors",
		},
	)
)

// Autoscan and change monitor metrics
var (
	AutoscanDirectories = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_sync_autoscan_directories",
			Help: "Number of registered autoscan directories by mode",
		},
		[]string{"mode"},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Container chain metrics
var (
	ContainerChainCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_container_chain_cache_hits_total",
			Help: "Total number of container path cache hits",
		},
	)

	ContainerChainCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_container_chain_cache_misses_total",
			Help: "Total number of container path cache misses",
		},
	)

	ContainersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_containers_created_total",
			Help: "Total number of containers created",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_fs_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_fs_operation_errors_total",
			Help: "Total number of filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_fs_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_fs_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_fs_stale_errors_total",
			Help: "Total number of stale NFS file handle errors",
		},
		[]string{"operation", "volume"},
	)
)

// Content library metrics
var (
	LibraryItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_sync_library_items_total",
			Help: "Total number of items in the store by class",
		},
		[]string{"class"},
	)

	LibraryContainersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_library_containers_total",
			Help: "Total number of containers in the store",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_sync_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
