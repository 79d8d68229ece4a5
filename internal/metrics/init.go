package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Task metrics (per kind × status) ---
	taskKinds := []string{"add-file", "remove-object", "rescan-directory", "fetch-content"}
	for _, kind := range taskKinds {
		for _, status := range []string{"completed", "failed", "invalidated"} {
			TasksTotal.WithLabelValues(kind, status)
		}
		TaskDuration.WithLabelValues(kind)
	}
	for _, prio := range []string{"normal", "low"} {
		TasksQueued.WithLabelValues(prio)
	}

	// --- Scan metrics ---
	for _, mode := range []string{"timed", "watch", "manual"} {
		ScanRunsTotal.WithLabelValues(mode)
	}
	for _, mode := range []string{"timed", "watch"} {
		AutoscanDirectories.WithLabelValues(mode)
	}

	// --- Watcher events ---
	for _, ev := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}

	// --- Filesystem operation metrics (per volume × operation) ---
	volumes := []string{"media", "database", "unknown"}
	fsOps := []string{"stat", "lstat", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}

	// --- DB query operations ---
	for _, op := range []string{"add_object", "update_object", "remove_objects",
		"load_object", "find_by_path", "find_id_by_path", "find_refs",
		"get_objects", "list_children", "child_count", "stats",
		"add_container_chain", "ensure_path",
		"save_autoscan", "load_autoscans", "find_autoscan",
		"remove_autoscan", "orphan_autoscan"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
