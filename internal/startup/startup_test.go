package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-fetcher/internal/memory"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS/Arch to be set, got %q/%q", info.OS, info.Arch)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		setEnv   bool
		want     string
	}{
		{"unset returns default", "", false, "default"},
		{"set returns value", "custom", true, "custom"},
		{"empty returns default", "", true, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "MEDIA_FETCHER_TEST_VAR"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			} else {
				t.Setenv(key, "")
				os.Unsetenv(key)
			}

			if got := getEnv(key, "default"); got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value      string
		defaultVal bool
		want       bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MEDIA_FETCHER_TEST_BOOL", tt.value)
			if got := getEnvBool("MEDIA_FETCHER_TEST_BOOL", tt.defaultVal); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"5s", 5 * time.Second},
		{"0", 0},
		{"-1s", time.Minute},
		{"soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MEDIA_FETCHER_TEST_DURATION", tt.value)
			if got := getEnvDuration("MEDIA_FETCHER_TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvBytes(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"", 1024},
		{"2048", 2048},
		{"1Mi", 1 << 20},
		{"lots", 1024},
		{"0", 1024},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MEDIA_FETCHER_TEST_BYTES", tt.value)
			if got := getEnvBytes("MEDIA_FETCHER_TEST_BYTES", 1024); got != tt.want {
				t.Errorf("getEnvBytes(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	library := filepath.Join(root, "library")
	if err := os.Mkdir(library, 0o755); err != nil {
		t.Fatal(err)
	}
	dbDir := filepath.Join(root, "db", "nested")

	t.Setenv("LIBRARY_DIR", library)
	t.Setenv("DATABASE_DIR", dbDir)
	t.Setenv("PORT", "8181")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("INDEX_INTERVAL", "1h")
	t.Setenv("POLL_INTERVAL", "0")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("HTTP_FETCH_TIMEOUT", "")
	t.Setenv("MAX_FETCH_BYTES", "64Mi")
	t.Setenv("VIPS_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LibraryDir != library {
		t.Errorf("LibraryDir = %q, want %q", cfg.LibraryDir, library)
	}
	if _, err := os.Stat(dbDir); err != nil {
		t.Errorf("database directory was not created: %v", err)
	}
	if cfg.DatabasePath != filepath.Join(dbDir, "media.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Port != "8181" || cfg.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s, want 8181/9090", cfg.Port, cfg.MetricsPort)
	}
	if cfg.MetricsEnabled || cfg.VipsEnabled {
		t.Error("expected metrics and vips to be disabled")
	}
	if cfg.IndexInterval != time.Hour || cfg.PollInterval != 0 {
		t.Errorf("intervals = %v/%v, want 1h/0", cfg.IndexInterval, cfg.PollInterval)
	}
	if cfg.CacheTTL != 10*time.Minute || cfg.HTTPFetchTimeout != 30*time.Second {
		t.Errorf("provider defaults = %v/%v", cfg.CacheTTL, cfg.HTTPFetchTimeout)
	}
	if cfg.MaxFetchBytes != 64<<20 {
		t.Errorf("MaxFetchBytes = %d, want %d", cfg.MaxFetchBytes, 64<<20)
	}

	mounts := cfg.VolumeMounts()
	if mounts["library"] != library || mounts["database"] != dbDir {
		t.Errorf("VolumeMounts() = %v", mounts)
	}
}

func TestLoadConfigDatabaseDirIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LIBRARY_DIR", root)
	t.Setenv("DATABASE_DIR", file)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_DIR is a file")
	}
}

func TestLoadConfigMissingLibraryIsNotFatal(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LIBRARY_DIR", filepath.Join(root, "missing"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))

	if _, err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil for a missing library", err)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/api/assets", noop).Methods(http.MethodGet).Name("listAssets")
	router.HandleFunc("/api/requests/{id}", noop).Methods(http.MethodDelete)
	router.HandleFunc("/livez", noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3: %+v", len(routes), routes)
	}

	want := []RouteInfo{
		{Method: http.MethodGet, Path: "/api/assets", Name: "listAssets"},
		{Method: http.MethodDelete, Path: "/api/requests/{id}"},
		{Method: "*", Path: "/livez"},
	}
	for i, w := range want {
		if routes[i] != w {
			t.Errorf("routes[%d] = %+v, want %+v", i, routes[i], w)
		}
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/assets/{id}/image", "api/assets"},
		{"/api/cache", "api/cache"},
		{"/livez", "livez"},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := getRouteGroup(tt.path); got != tt.want {
				t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestLogMemoryConfig(t *testing.T) {
	// Should not panic for any source
	LogMemoryConfig(memory.ConfigResult{Source: "none"})
	LogMemoryConfig(memory.ConfigResult{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: 1 << 30})
	LogMemoryConfig(memory.ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: 2 << 30,
		GoMemLimit:     3 << 29,
		Ratio:          0.75,
	})
}

func TestOrDisabled(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "disabled"},
		{-time.Second, "disabled"},
		{30 * time.Second, "30s"},
	}
	for _, tt := range tests {
		if got := orDisabled(tt.in); got != tt.want {
			t.Errorf("orDisabled(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSettingsCoverEveryVariable(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range settings() {
		if seen[s.env] {
			t.Errorf("%s bound twice", s.env)
		}
		seen[s.env] = true
	}
	for _, env := range []string{"LIBRARY_DIR", "DATABASE_DIR", "PORT", "METRICS_PORT", "POLL_INTERVAL", "MAX_FETCH_BYTES", "VIPS_ENABLED"} {
		if !seen[env] {
			t.Errorf("%s is not read by LoadConfig", env)
		}
	}
}
