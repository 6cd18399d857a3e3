package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Image request coordination metrics
var (
	ImageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_image_requests_total",
			Help: "Total number of image requests by kind and disposition",
		},
		[]string{"kind", "disposition"}, // kind: "image", "data"; disposition: "started", "coalesced", "invalid"
	)

	ImageRequestOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_image_request_outcomes_total",
			Help: "Terminal outcomes of in-flight image requests",
		},
		[]string{"kind", "outcome"}, // outcome: "success", "failure", "cancelled"
	)

	ImageRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_image_requests_in_flight",
			Help: "Number of distinct fetches currently in flight",
		},
	)

	ImageRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_image_request_duration_seconds",
			Help:    "Time from fetch start to terminal outcome",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	ImageResultObservers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_image_result_observers",
			Help:    "Number of result observers notified per terminal outcome",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50},
		},
	)

	ProgressObservers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_progress_observers",
			Help: "Number of registered progress observers",
		},
	)

	DispatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_dispatcher_queue_depth",
			Help: "Callbacks waiting on the delivery dispatcher",
		},
	)
)

// Provider metrics
var (
	ProviderFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_provider_fetches_total",
			Help: "Total number of provider fetches by source and status",
		},
		[]string{"source", "status"}, // source: "local", "remote", "cache"
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_provider_fetch_duration_seconds",
			Help:    "Provider fetch duration by phase",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"}, // "load", "decode", "resize"
	)

	ProviderDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_provider_decode_total",
			Help: "Images decoded by detected format",
		},
		[]string{"format"},
	)

	ProviderWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_provider_workers_busy",
			Help: "Provider worker slots currently in use",
		},
	)

	ProviderCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_provider_cache_hits_total",
			Help: "Total number of pre-warm cache hits",
		},
	)

	ProviderCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_provider_cache_misses_total",
			Help: "Total number of pre-warm cache misses",
		},
	)

	ProviderCacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_provider_cache_items",
			Help: "Number of images held in the pre-warm cache",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_fetcher_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"operation"},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_indexer_last_run_timestamp",
			Help: "Timestamp of the last indexer run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerAssetsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_indexer_assets_processed_total",
			Help: "Total number of assets registered by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_indexer_parallel_workers",
			Help: "Number of workers used by the last library walk",
		},
	)

	IndexerPollChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_indexer_poll_checks_total",
			Help: "Total number of change detection polls",
		},
	)

	IndexerPollChangesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_indexer_poll_changes_detected_total",
			Help: "Number of polls that detected library changes",
		},
	)

	IndexerPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_indexer_poll_duration_seconds",
			Help:    "Duration of change detection polls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// Asset library metrics
var (
	AssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_fetcher_assets_total",
			Help: "Total number of indexed assets by format",
		},
		[]string{"format"},
	)

	AssetBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_asset_bytes_total",
			Help: "Total size of indexed originals in bytes",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetcher_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetcher_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retrying filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetcher_memory_paused",
			Help: "Whether decoding is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetcher_memory_gc_pauses_total",
			Help: "Number of times decoding was paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_fetcher_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
