package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"media-fetcher/internal/logging"
	"media-fetcher/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is served by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
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

// Config holds all application configuration
type Config struct {
	LibraryDir      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	IndexInterval   time.Duration
	PollInterval    time.Duration
	LogHealthChecks bool

	// Provider settings
	CacheTTL         time.Duration
	HTTPFetchTimeout time.Duration
	MaxFetchBytes    int64
	VipsEnabled      bool

	// DatabasePath is DatabaseDir/media.db.
	DatabasePath string
}

// setting binds one environment variable to a Config field. load stores
// the parsed value; show renders it for the startup log.
type setting struct {
	env  string
	load func(c *Config)
	show func(c *Config) string
}

func settings() []setting {
	return []setting{
		{"LIBRARY_DIR",
			func(c *Config) { c.LibraryDir = getEnv("LIBRARY_DIR", "/library") },
			func(c *Config) string { return c.LibraryDir }},
		{"DATABASE_DIR",
			func(c *Config) { c.DatabaseDir = getEnv("DATABASE_DIR", "/database") },
			func(c *Config) string { return c.DatabaseDir }},
		{"PORT",
			func(c *Config) { c.Port = getEnv("PORT", "8080") },
			func(c *Config) string { return c.Port }},
		{"METRICS_PORT",
			func(c *Config) { c.MetricsPort = getEnv("METRICS_PORT", "9090") },
			func(c *Config) string { return c.MetricsPort }},
		{"METRICS_ENABLED",
			func(c *Config) { c.MetricsEnabled = getEnvBool("METRICS_ENABLED", true) },
			func(c *Config) string { return fmt.Sprint(c.MetricsEnabled) }},
		{"INDEX_INTERVAL",
			func(c *Config) { c.IndexInterval = getEnvDuration("INDEX_INTERVAL", 30*time.Minute) },
			func(c *Config) string { return c.IndexInterval.String() }},
		{"POLL_INTERVAL",
			func(c *Config) { c.PollInterval = getEnvDuration("POLL_INTERVAL", 30*time.Second) },
			func(c *Config) string { return c.PollInterval.String() }},
		{"CACHE_TTL",
			func(c *Config) { c.CacheTTL = getEnvDuration("CACHE_TTL", 10*time.Minute) },
			func(c *Config) string { return c.CacheTTL.String() }},
		{"HTTP_FETCH_TIMEOUT",
			func(c *Config) { c.HTTPFetchTimeout = getEnvDuration("HTTP_FETCH_TIMEOUT", 30*time.Second) },
			func(c *Config) string { return c.HTTPFetchTimeout.String() }},
		{"MAX_FETCH_BYTES",
			func(c *Config) { c.MaxFetchBytes = getEnvBytes("MAX_FETCH_BYTES", 128<<20) },
			func(c *Config) string { return memory.FormatBytes(c.MaxFetchBytes) }},
		{"VIPS_ENABLED",
			func(c *Config) { c.VipsEnabled = getEnvBool("VIPS_ENABLED", true) },
			func(c *Config) string { return fmt.Sprint(c.VipsEnabled) }},
		{"LOG_HEALTH_CHECKS",
			func(c *Config) { c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", true) },
			func(c *Config) string { return fmt.Sprint(c.LogHealthChecks) }},
	}
}

// LoadConfig reads the environment, prepares the database directory and
// logs the result. Only an unusable database directory is fatal.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")
	c := &Config{}
	for _, s := range settings() {
		s.load(c)
		logging.Info("  %-20s %s", s.env+":", s.show(c))
	}
	logging.Info("  %-20s %s", "LOG_LEVEL:", logging.GetLevel())

	section("DIRECTORY SETUP")
	if err := c.resolvePaths(); err != nil {
		return nil, err
	}

	// The library is normally a read-only mount that may appear later.
	if err := checkLibrary(c.LibraryDir); err != nil {
		logging.Warn("  Library directory issue: %v", err)
	}

	if err := ensureDirectory(c.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(c.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory %s is not writable: %w", c.DatabaseDir, err)
	}
	logging.Info("  [OK] Database directory is writable")

	c.DatabasePath = filepath.Join(c.DatabaseDir, "media.db")
	return c, nil
}

func (c *Config) resolvePaths() error {
	for name, p := range map[string]*string{"library": &c.LibraryDir, "database": &c.DatabaseDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s directory %q: %w", name, *p, err)
		}
		*p = abs
		logging.Info("  %-9s %s", name+":", abs)
	}
	return nil
}

// VolumeMounts returns the volume names used to label filesystem metrics.
func (c *Config) VolumeMounts() map[string]string {
	return map[string]string{
		"library":  c.LibraryDir,
		"database": c.DatabaseDir,
	}
}

func checkLibrary(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	logging.Debug("    Library has %d top-level entries", len(entries))
	return nil
}

func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		logging.Debug("    Creating %s", path)
		return os.MkdirAll(path, 0o755)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}
