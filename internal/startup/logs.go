package startup

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"media-fetcher/internal/logging"
	"media-fetcher/internal/memory"
)

const rule = "------------------------------------------------------------"

// section starts a titled block in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

// LogMemoryConfig logs the result of memory.ConfigureFromEnv.
func LogMemoryConfig(mc memory.ConfigResult) {
	section("MEMORY CONFIGURATION")

	switch {
	case !mc.Configured:
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	case mc.Source == "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", memory.FormatBytes(mc.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%% of container limit)", memory.FormatBytes(mc.GoMemLimit), mc.Ratio*100)
	default:
		logging.Info("  GOMEMLIMIT:      %s (from %s)", memory.FormatBytes(mc.GoMemLimit), mc.Source)
	}
}

// LogDatabaseInit logs how long opening the database took.
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE")
	logging.Info("  [OK] Database ready in %v", duration)
}

// LogProviderInit logs the fetch provider setup.
func LogProviderInit(vipsAvailable bool, workerCount int, cacheTTL time.Duration) {
	section("FETCH PROVIDER")
	logging.Info("  Workers:         %d", workerCount)
	logging.Info("  Pre-warm TTL:    %v", cacheTTL)
	if !vipsAvailable {
		logging.Warn("  libvips unavailable, decoding with pure Go only")
		logging.Warn("  HEIF, AVIF and JPEG XL originals cannot be decoded")
		return
	}
	logging.Info("  [OK] libvips fast path enabled")
}

// LogIndexerInit logs the indexer schedule before it starts.
func LogIndexerInit(indexInterval, pollInterval time.Duration) {
	section("INDEXER")
	logging.Info("  Full index every: %v", orDisabled(indexInterval))
	logging.Info("  Change polling:   %v", orDisabled(pollInterval))
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started, initial index running in background")
}

func orDisabled(d time.Duration) string {
	if d <= 0 {
		return "disabled"
	}
	return d.String()
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  API:             http://0.0.0.0:%s/api", config.Port)
	metricsURL := "DISABLED"
	if config.MetricsEnabled {
		metricsURL = fmt.Sprintf("http://0.0.0.0:%s/metrics", config.MetricsPort)
	}
	logging.Info("  Metrics:         %s", metricsURL)
	logging.Info(rule)
}

// LogShutdownInitiated logs the signal that started shutdown.
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	fmt.Println(rule + `
                     _ _             __     _       _
  _ __ ___   ___  __| (_) __ _      / _| __| |_ ___| |__   ___ _ __
 | '_ ' _ \ / _ \/ _' | |/ _' |____| |_ / _ \ __/ __| '_ \ / _ \ '__|
 | | | | | |  __/ (_| | | (_| |____|  _|  __/ || (__| | | |  __/ |
 |_| |_| |_|\___|\__,_|_|\__,_|    |_|  \___|\__\___|_| |_|\___|_|
` + rule)
	logging.Info("  Version:    %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM")
	logging.Info("  Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs: %d, GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname: %s", hostname)
	}
}
