// Package main provides the entry point for the media-fetcher service.
//
// media-fetcher indexes a library of images into SQLite and serves resized
// images and original bytes for them over HTTP. Concurrent requests for the
// same image are coalesced into a single fetch, and every request carries a
// predictable id that clients can use to cancel it.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from the environment or cgroup limits
//  2. Configuration Loading: reads environment variables and validates directories
//  3. Database Initialization: opens the SQLite asset store
//  4. Component Initialization:
//     - Memory Monitor: pauses decodes under memory pressure
//     - Provider: loads originals from disk or HTTP and decodes them (libvips when enabled)
//     - Image Manager: coalesces requests and tracks them by request id
//     - Indexer: walks the library and keeps the asset table current
//     - Metrics Collector: refreshes Prometheus gauges every minute
//  5. HTTP Server Setup: registers routes and middleware and starts serving
//  6. Graceful Shutdown: handles SIGINT/SIGTERM and stops every component
//
// # HTTP Servers
//
//  1. Main Server (default port 8080): health probes, asset listing, image
//     and data fetches, request cancellation and cache warming.
//  2. Metrics Server (default port 9090, optional): /metrics and /health.
//
// # Environment Variables
//
//   - LIBRARY_DIR: root of the image library (default: /library)
//   - DATABASE_DIR: directory for the SQLite database (default: /database)
//   - PORT: main HTTP server port (default: 8080)
//   - METRICS_PORT: metrics server port (default: 9090)
//   - METRICS_ENABLED: enable the metrics server (default: true)
//   - INDEX_INTERVAL: full re-index interval (default: 30m)
//   - POLL_INTERVAL: change detection interval, 0 disables (default: 30s)
//   - CACHE_TTL: lifetime of pre-warmed images (default: 10m)
//   - HTTP_FETCH_TIMEOUT: timeout for remote originals (default: 30s)
//   - MAX_FETCH_BYTES: size cap for any original (default: 128MiB)
//   - VIPS_ENABLED: decode with libvips when available (default: true)
//   - FETCH_WORKERS: override the provider worker count
//   - LOG_LEVEL: debug, info, warn or error
//   - LOG_HEALTH_CHECKS: log probe requests (default: true)
//   - GOMEMLIMIT / MEMORY_LIMIT / MEMORY_RATIO: memory limit configuration
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout)
//  2. Cancel in-flight fetches and release cached images
//  3. Stop the indexer (current batch commits)
//  4. Stop the metrics collector and memory monitor
//  5. Shut down libvips and the metrics server
//  6. Close the database
//
// # Build Requirements
//
// CGO is required for SQLite and libvips:
//
//	go build -o media-fetcher ./cmd/media-fetcher
package main
