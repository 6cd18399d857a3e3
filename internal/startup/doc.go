// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - LIBRARY_DIR: Path to the image library (default: /library)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - INDEX_INTERVAL: Full re-index interval as Go duration (default: 30m, 0 disables)
//   - POLL_INTERVAL: Library change detection interval as Go duration (default: 30s, 0 disables)
//   - CACHE_TTL: Lifetime of pre-warmed images (default: 10m)
//   - HTTP_FETCH_TIMEOUT: Timeout for remote originals (default: 30s)
//   - MAX_FETCH_BYTES: Largest original read from disk or HTTP (default: 128MiB)
//   - FETCH_WORKERS: Pins the number of concurrent fetches
//   - VIPS_ENABLED: Use libvips for decoding when available (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Invalid values are logged and replaced by the default.
//
// # Directory Setup
//
//   - Database directory: created if missing, must be writable
//   - Library directory: checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogDatabaseInit(dbInitDuration)
//	startup.LogIndexerInit(config.IndexInterval, config.PollInterval)
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
