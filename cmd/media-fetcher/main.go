package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-fetcher/internal/database"
	"media-fetcher/internal/filesystem"
	"media-fetcher/internal/handlers"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/indexer"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/memory"
	"media-fetcher/internal/metrics"
	"media-fetcher/internal/middleware"
	"media-fetcher/internal/provider"
	"media-fetcher/internal/startup"
	"media-fetcher/internal/workers"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout    = 30 * time.Second
	metricsInterval    = time.Minute
	dbMetricsInterval  = 30 * time.Second
	maxProviderWorkers = 8
)

// app holds every long-running component so shutdown can stop them in order.
type app struct {
	db        *database.Database
	monitor   *memory.Monitor
	provider  *provider.Local
	images    *imagemanager.Manager
	indexer   *indexer.Indexer
	collector *metrics.Collector
	server    *http.Server
	metrics   *http.Server

	stopDBMetrics context.CancelFunc
}

func main() {
	startTime := time.Now()

	memConfig := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memConfig)

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(config.VolumeMounts()))

	a := &app{}

	a.monitor = memory.NewMonitor(memory.DefaultConfig())
	a.monitor.Start()

	dbStart := time.Now()
	a.db, err = database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	if config.VipsEnabled {
		provider.InitVips()
	}
	workerCount := workers.ForMixed(maxProviderWorkers)
	a.provider = provider.NewLocal(providerConfig(config, a.monitor, workerCount))
	a.images = imagemanager.New(a.provider)
	startup.LogProviderInit(provider.IsVipsAvailable(), workerCount, config.CacheTTL)

	startup.LogIndexerInit(config.IndexInterval, config.PollInterval)
	a.indexer = indexer.New(a.db, config.LibraryDir, config.IndexInterval)
	a.indexer.SetPollInterval(pollInterval(config.PollInterval))
	a.indexer.SetOnIndexComplete(a.db.UpdateDBMetrics)
	a.indexer.Start()
	startup.LogIndexerStarted()

	a.collector = metrics.NewCollector(a.db, a.provider, metricsInterval)
	a.collector.Start()

	var dbMetricsCtx context.Context
	dbMetricsCtx, a.stopDBMetrics = context.WithCancel(context.Background())
	go updateDBMetrics(dbMetricsCtx, a.db, dbMetricsInterval)

	h := handlers.New(a.db, a.indexer, a.images)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	a.server = newServer(":"+config.Port, wrapHandler(router, config.LogHealthChecks))
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startup.LogFatal("Server error: %v", err)
		}
	}()

	if config.MetricsEnabled {
		a.metrics = newMetricsServer(":" + config.MetricsPort)
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	a.shutdown(sig.String())
}

// providerConfig maps the application configuration onto the provider.
func providerConfig(config *startup.Config, monitor *memory.Monitor, workerCount int) provider.Config {
	cfg := provider.DefaultConfig()
	cfg.Workers = workerCount
	cfg.CacheTTL = config.CacheTTL
	cfg.CacheCleanupInterval = 2 * config.CacheTTL
	cfg.HTTPTimeout = config.HTTPFetchTimeout
	cfg.MaxBytes = config.MaxFetchBytes
	cfg.Monitor = monitor
	return cfg
}

// pollInterval maps the configured interval onto the indexer, where a
// negative value disables polling.
func pollInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.Register(r)
	return r
}

// wrapHandler applies logging and compression outside the router.
func wrapHandler(router http.Handler, logHealthChecks bool) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = logHealthChecks
	logged := middleware.Logger(loggingConfig)(router)

	return middleware.Compression(middleware.DefaultCompressionConfig())(logged)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Remote originals can take a while; the provider's HTTP timeout
		// bounds the fetch instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
}

func newMetricsServer(addr string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", handlers.MetricsHandler())
	m.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           m,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func updateDBMetrics(ctx context.Context, db *database.Database, interval time.Duration) {
	db.UpdateDBMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.UpdateDBMetrics()
		}
	}
}

// shutdown stops components in dependency order: no new requests, then no
// new fetches, then background work, then storage.
func (a *app) shutdown(sig string) {
	startup.LogShutdownInitiated(sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := a.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Cancelling in-flight fetches")
	a.images.Close()
	a.provider.Close()
	startup.LogShutdownStepComplete("Fetches cancelled")

	startup.LogShutdownStep("Stopping indexer")
	a.indexer.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	a.collector.Stop()
	a.stopDBMetrics()
	a.monitor.Stop()
	provider.ShutdownVips()

	if a.metrics != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := a.metrics.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := a.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
