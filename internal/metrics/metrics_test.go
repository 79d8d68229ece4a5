package metrics

import (
	"testing"
)

func TestHTTPMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestDatabaseMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"DBQueryTotal", DBQueryTotal},
		{"DBQueryDuration", DBQueryDuration},
		{"DBConnectionsOpen", DBConnectionsOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestSchedulerMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"TasksQueued", TasksQueued},
		{"TasksTotal", TasksTotal},
		{"TaskDuration", TaskDuration},
		{"SchedulerRunning", SchedulerRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestScanMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ScanRunsTotal", ScanRunsTotal},
		{"ScanDuration", ScanDuration},
		{"ScanObjectsAdded", ScanObjectsAdded},
		{"ScanObjectsRemoved", ScanObjectsRemoved},
		{"ScanErrors", ScanErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestWatcherMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"AutoscanDirectories", AutoscanDirectories},
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"WatcherErrors", WatcherErrors},
		{"WatchedDirectories", WatchedDirectories},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestContainerMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ContainerChainCacheHits", ContainerChainCacheHits},
		{"ContainerChainCacheMisses", ContainerChainCacheMisses},
		{"ContainersCreated", ContainersCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestFilesystemMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"FilesystemOperationDuration", FilesystemOperationDuration},
		{"FilesystemOperationErrors", FilesystemOperationErrors},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
		{"FilesystemRetryFailures", FilesystemRetryFailures},
		{"FilesystemStaleErrors", FilesystemStaleErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestLibraryMetricsExist(t *testing.T) {
	if LibraryItemsTotal == nil {
		t.Error("LibraryItemsTotal metric is nil")
	}
	if LibraryContainersTotal == nil {
		t.Error("LibraryContainersTotal metric is nil")
	}
	if AppInfo == nil {
		t.Error("AppInfo metric is nil")
	}
}

func TestMetricsCanBeUsed(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("recording metrics panicked: %v", r)
		}
	}()

	HTTPRequestsTotal.WithLabelValues("GET", "/api/objects", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/objects").Observe(0.01)
	DBQueryTotal.WithLabelValues("load_object", "success").Inc()
	TasksTotal.WithLabelValues("rescan-directory", "completed").Inc()
	ScanRunsTotal.WithLabelValues("timed").Inc()
	WatcherEventsTotal.WithLabelValues("create").Inc()
	ContainerChainCacheHits.Inc()
	LibraryItemsTotal.WithLabelValues("image").Set(42)
}

func TestInitializeMetricsDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics() panicked: %v", r)
		}
	}()

	InitializeMetrics()
}

func TestSetAppInfo(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("SetAppInfo() panicked: %v", r)
		}
	}()

	SetAppInfo("1.0.0-test", "abcdef0", "go1.25")
}
