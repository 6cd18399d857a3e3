package startup

import (
	"os"
	"strconv"
	"time"

	"media-fetcher/internal/logging"
	"media-fetcher/internal/memory"
)

// getEnv returns the variable, or def when it is unset or empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseEnv applies parse to a set variable and falls back to def, with a
// warning, when parsing fails.
func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		logging.Warn("Invalid value for %s: %q (%v), using default: %v", key, raw, err, def)
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	return parseEnv(key, def, strconv.ParseBool)
}

// getEnvDuration accepts zero but not negative durations.
func getEnvDuration(key string, def time.Duration) time.Duration {
	return parseEnv(key, def, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d < 0 {
			err = strconv.ErrRange
		}
		return d, err
	})
}

// getEnvBytes reads sizes such as "64MiB" and requires them to be positive.
func getEnvBytes(key string, def int64) int64 {
	return parseEnv(key, def, func(s string) (int64, error) {
		n, err := memory.ParseByteSize(s)
		if err == nil && n <= 0 {
			err = strconv.ErrRange
		}
		return n, err
	})
}
