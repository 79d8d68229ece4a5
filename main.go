package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-sync/internal/autoscan"
	"media-sync/internal/content"
	"media-sync/internal/filesystem"
	"media-sync/internal/handlers"
	"media-sync/internal/logging"
	"media-sync/internal/metrics"
	"media-sync/internal/middleware"
	"media-sync/internal/startup"
	"media-sync/internal/store"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	// Label filesystem metrics by the volume a path belongs to
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"database": config.DatabaseDir,
	}))

	// Initialize database
	dbStart := time.Now()
	st, err := store.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize content manager
	startup.LogContentInit(config.ScanInterval, config.ScanMode)
	manager, err := content.NewManager(content.Config{
		FollowSymlinks:     config.FollowSymlinks,
		HiddenFiles:        config.HiddenFiles,
		LastPlayedMax:      config.LastPlayedMax,
		ArtParentCount:     config.ArtParentCount,
		ArtMinDepth:        config.ArtMinDepth,
		PlayedMimePrefixes: config.MarkPlayedTypes,
		Retry:              filesystem.DefaultRetryConfig(),
	}, st, nil)
	if err != nil {
		startup.LogFatal("Failed to create content manager: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		startup.LogFatal("Failed to start content manager: %v", err)
	}
	startup.LogContentStarted()

	// Register the media directory as a persistent autoscan
	if err := manager.EnsureAutoscan(ctx, config.MediaDir,
		autoscan.Mode(config.ScanMode), config.RecursiveScan, config.ScanInterval); err != nil {
		logging.Error("Failed to register media directory autoscan: %v", err)
	}

	// Metrics
	var collector *metrics.Collector
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
		filesystem.SetObserver(metrics.NewFilesystemObserver())
		collector = metrics.NewCollector(st, 30*time.Second)
		collector.Start()
		go serveMetrics(config.MetricsPort)
	}

	// Initialize handlers
	h := handlers.New(st, manager, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, manager, collector)

	h.SetReady()

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/objects/{id:[0-9]+}", h.GetObject).Methods("GET")
	api.HandleFunc("/objects/{id:[0-9]+}", h.UpdateObject).Methods("PATCH")
	api.HandleFunc("/objects/{id:[0-9]+}", h.DeleteObject).Methods("DELETE")
	api.HandleFunc("/objects/{id:[0-9]+}/children", h.BrowseObject).Methods("GET")
	api.HandleFunc("/objects/{id:[0-9]+}/played", h.MarkPlayed).Methods("POST")
	api.HandleFunc("/last-played", h.GetLastPlayed).Methods("GET")
	api.HandleFunc("/import", h.ImportPath).Methods("POST")

	api.HandleFunc("/autoscans", h.ListAutoscans).Methods("GET")
	api.HandleFunc("/autoscans", h.CreateAutoscan).Methods("POST")
	api.HandleFunc("/autoscans/{id:[0-9]+}", h.GetAutoscan).Methods("GET")
	api.HandleFunc("/autoscans/{id:[0-9]+}", h.DeleteAutoscan).Methods("DELETE")
	api.HandleFunc("/autoscans/{id:[0-9]+}/rescan", h.TriggerRescan).Methods("POST")

	api.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/{id:[0-9]+}", h.CancelTask).Methods("DELETE")

	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}

func serveMetrics(port string) {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, m); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, manager *content.Manager, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping content manager")
	manager.Shutdown(ctx)
	startup.LogShutdownStepComplete("Content manager stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
