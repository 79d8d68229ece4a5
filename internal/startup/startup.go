package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-sync/internal/logging"

	"github.com/gorilla/mux"
)

// Injected at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is the version payload served by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds the full runtime configuration, read once at startup.
type Config struct {
	MediaDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	ScanInterval    time.Duration
	ScanMode        string
	RecursiveScan   bool
	FollowSymlinks  bool
	HiddenFiles     bool
	LastPlayedMax   int
	ArtParentCount  int
	ArtMinDepth     int
	MarkPlayedTypes []string
	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath string
}

// LoadConfig reads configuration from the environment, logs every setting,
// and validates the directories the engine needs. The media directory is
// created if missing; an unwritable database directory is fatal.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	cfg := &Config{
		MediaDir:        getEnv("MEDIA_DIR", "/media"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		ScanMode:        getEnv("SCAN_MODE", "timed"),
		RecursiveScan:   getEnvBool("RECURSIVE_SCAN", true),
		FollowSymlinks:  getEnvBool("FOLLOW_SYMLINKS", false),
		HiddenFiles:     getEnvBool("HIDDEN_FILES", false),
		LastPlayedMax:   getEnvInt("LAST_PLAYED_MAX", 5),
		ArtParentCount:  getEnvInt("CONTAINERART_PARENT_COUNT", 2),
		ArtMinDepth:     getEnvInt("CONTAINERART_MIN_DEPTH", 2),
		MarkPlayedTypes: getEnvList("MARK_PLAYED_TYPES", nil),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
	}

	scanIntervalStr := getEnv("SCAN_INTERVAL", "30m")
	interval, err := time.ParseDuration(scanIntervalStr)
	if err != nil {
		logging.Warn("  Invalid SCAN_INTERVAL %q, using default: 30m", scanIntervalStr)
		interval = 30 * time.Minute
	}
	cfg.ScanInterval = interval

	if cfg.ScanMode != "timed" && cfg.ScanMode != "watch" {
		logging.Warn("  Invalid SCAN_MODE %q, using default: timed", cfg.ScanMode)
		cfg.ScanMode = "timed"
	}

	markPlayed := "(all)"
	if len(cfg.MarkPlayedTypes) > 0 {
		markPlayed = strings.Join(cfg.MarkPlayedTypes, ",")
	}

	logging.Info("  MEDIA_DIR:         %s", cfg.MediaDir)
	logging.Info("  DATABASE_DIR:      %s", cfg.DatabaseDir)
	logging.Info("  PORT:              %s", cfg.Port)
	logging.Info("  METRICS_PORT:      %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:   %v", cfg.MetricsEnabled)
	logging.Info("  SCAN_INTERVAL:     %v", cfg.ScanInterval)
	logging.Info("  SCAN_MODE:         %s", cfg.ScanMode)
	logging.Info("  RECURSIVE_SCAN:    %v", cfg.RecursiveScan)
	logging.Info("  FOLLOW_SYMLINKS:   %v", cfg.FollowSymlinks)
	logging.Info("  HIDDEN_FILES:      %v", cfg.HiddenFiles)
	logging.Info("  LAST_PLAYED_MAX:   %d", cfg.LastPlayedMax)
	logging.Info("  CONTAINERART_PARENT_COUNT: %d", cfg.ArtParentCount)
	logging.Info("  CONTAINERART_MIN_DEPTH:    %d", cfg.ArtMinDepth)
	logging.Info("  MARK_PLAYED_TYPES: %s", markPlayed)
	logging.Info("  LOG_HEALTH_CHECKS: %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	if err := cfg.resolveDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveDirectories turns the configured paths absolute and verifies the
// engine can use them.
func (cfg *Config) resolveDirectories() error {
	logging.Info("")
	section("DIRECTORY SETUP")

	var err error
	if cfg.MediaDir, err = filepath.Abs(cfg.MediaDir); err != nil {
		return fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "media-sync.db")

	logging.Info("  Media directory:    %s", cfg.MediaDir)
	logging.Info("  Database directory: %s", cfg.DatabaseDir)

	// A missing media directory only warns: it may appear later (e.g. a
	// mount coming up after the container).
	if err := ensureDirectory(cfg.MediaDir); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	if err := checkWritable(cfg.DatabaseDir); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:  ENABLED (required)")
	logging.Info("    Metrics:   %s", enabledString(cfg.MetricsEnabled))
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization.
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogContentInit logs content manager initialization.
func LogContentInit(interval time.Duration, mode string) {
	logging.Info("")
	section("CONTENT MANAGER INITIALIZATION")
	logging.Info("  Scan mode:     %s", mode)
	logging.Info("  Scan interval: %v", interval)
	logging.Info("  Starting content manager...")
}

// LogContentStarted logs successful content manager start.
func LogContentStarted() {
	logging.Info("  [OK] Content manager started")
}

// RouteInfo describes one registered route for the startup log.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes walks router and collects every registered route.
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			// Method-less routes (e.g. a catch-all) still get listed.
			methods = []string{"*"}
		}
		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the HTTP setup; at debug level every route is listed,
// grouped by its first path segment.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			key := getRouteGroup(route.Path)
			groups[key] = append(groups[key], route)
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if key == "" {
				key = "root"
			}
			logging.Debug("  [%s]", key)
			for _, route := range groups[key] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup buckets a route path for the debug route listing. API
// routes group by their resource segment.
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	first, rest, _ := strings.Cut(path, "/")
	if first == "api" && rest != "" {
		resource, _, _ := strings.Cut(rest, "/")
		return "api/" + resource
	}
	return first
}

// ServerConfig feeds the server-started banner.
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the endpoints the running server exposes.
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start.
func LogShutdownInitiated(signal string) {
	logging.Info("")
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step.
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step.
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion.
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func section(title string) {
	logging.Info("------------------------------------------------------------")
	logging.Info(title)
	logging.Info("------------------------------------------------------------")
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___         _____
   /  |/  /__  ____/ (_)___ _  / ___/__  ______  _____
  / /|_/ / _ \/ __  / / __ '/  \__ \/ / / / __ \/ ___/
 / /  / /  __/ /_/ / / /_/ /  ___/ / /_/ / / / / /__
/_/  /_/\___/\__,_/_/\__,_/  /____/\__, /_/ /_/\___/
                                  /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:        %s", hostname)
	}
	logging.Info("")
}

// ensureDirectory creates path if missing and verifies it is a directory.
func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("  Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

// checkWritable probes write access by creating and removing a marker file.
func checkWritable(dir string) error {
	marker := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(marker, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(marker); err != nil {
		logging.Warn("failed to remove write test file %s: %v", marker, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
