package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"media-fetcher/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of the container limit given to the Go
	// heap. The remainder covers libvips buffers, which live outside the Go
	// heap, and goroutine stacks.
	DefaultMemoryRatio = 0.75
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set)
	GoMemLimit int64

	Ratio float64
}

// ConfigureFromEnv sets the Go soft memory limit from the container limit.
// Call it early in main, before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: standard Go variable, takes precedence
//   - MEMORY_LIMIT: container limit, in bytes or with a binary/decimal
//     suffix ("512Mi", "2G"), typically from the Kubernetes Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default 0.75)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{Source: "none"}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return result
	}

	memLimit, err := ParseByteSize(memLimitStr)
	if err != nil || memLimit <= 0 {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		return result
	}
	result.ContainerLimit = memLimit

	ratio := ratioFromEnv(os.Getenv("MEMORY_RATIO"))
	result.Ratio = ratio

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.GoMemLimit = goMemLimit

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit), ratio*100, FormatBytes(memLimit))

	return result
}

func ratioFromEnv(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", s, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if r <= 0 || r > 1.0 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

var byteSuffixes = []struct {
	suffix string
	mult   int64
}{
	// longest first so "Mi" is matched before "M"
	{"Ki", 1 << 10}, {"Mi", 1 << 20}, {"Gi", 1 << 30}, {"Ti", 1 << 40},
	{"K", 1e3}, {"M", 1e6}, {"G", 1e9}, {"T", 1e12},
}

// ParseByteSize parses a plain byte count or a Kubernetes style quantity
// such as "512Mi" or "2G".
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, bs := range byteSuffixes {
		if num, ok := strings.CutSuffix(s, bs.suffix); ok {
			n, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			return int64(n * float64(bs.mult)), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return n, nil
}

// FormatBytes formats bytes into a human-readable string.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
