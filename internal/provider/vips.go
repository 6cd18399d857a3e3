package provider

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"media-fetcher/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var errVipsUnavailable = errors.New("libvips not available")

var (
	vipsMu        sync.Mutex
	vipsAvailable bool
)

// vipsLogLevel maps the application level to the lowest libvips level
// worth forwarding.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func forwardVipsLog(domain string, level vips.LogLevel, msg string) {
	switch {
	case level <= vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case level <= vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips with logging routed through the application
// logger. Call it once at startup; without it the provider decodes with
// the pure Go stack only.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		return
	}

	vips.LoggingSettings(forwardVipsLog, vipsLogLevel(logging.GetLevel()))
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
}

// ShutdownVips releases libvips.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips has run.
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// vipsThumbnail decodes data with decode-time shrinking. crop selects fill
// semantics; otherwise the result fits inside width x height. A zero width
// and height decodes at full size, which is how formats without a Go
// decoder are read.
func vipsThumbnail(data []byte, width, height int, crop bool) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	if width > 0 && height > 0 {
		interesting := vips.InterestingNone
		if crop {
			interesting = vips.InterestingCentre
		}
		if err := ref.Thumbnail(width, height, interesting); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}
