package provider

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/mediatypes"
	"media-fetcher/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the largest width or height decoded as is.
	// Larger images are downscaled before any further processing.
	MaxImageDimension = 4096

	// MaxImagePixels caps width*height; ~20MP is ~80MB as RGBA.
	MaxImagePixels = 20_000_000
)

// constrainedSize returns the dimensions an image of w x h is reduced to,
// and whether a reduction is needed.
func constrainedSize(w, h, maxDimension, maxPixels int) (int, int, bool) {
	if w <= maxDimension && h <= maxDimension && w*h <= maxPixels {
		return w, h, false
	}

	tw, th := w, h
	if w > maxDimension || h > maxDimension {
		if w > h {
			tw = maxDimension
			th = h * maxDimension / w
		} else {
			th = maxDimension
			tw = w * maxDimension / h
		}
	}

	if tw*th > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(tw*th))
		tw = int(float64(tw) * scale)
		th = int(float64(th) * scale)
	}

	return max(tw, 1), max(th, 1), true
}

// decode reads data with the pure Go decoders, falling back to libvips for
// formats they cannot handle. Oversized images are constrained.
func decode(data []byte, format mediatypes.Format) (image.Image, error) {
	start := time.Now()
	defer func() {
		metrics.ProviderFetchDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	}()

	if !format.Decodable() {
		img, err := vipsThumbnail(data, 0, 0, false)
		if err != nil {
			return nil, fmt.Errorf("unsupported image format %s: %w", format, err)
		}
		metrics.ProviderDecodeByFormat.WithLabelValues(string(format)).Inc()
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	metrics.ProviderDecodeByFormat.WithLabelValues(string(format)).Inc()

	b := img.Bounds()
	if tw, th, ok := constrainedSize(b.Dx(), b.Dy(), MaxImageDimension, MaxImagePixels); ok {
		logging.Info("Constraining large image from %dx%d to %dx%d", b.Dx(), b.Dy(), tw, th)
		img = imaging.Resize(img, tw, th, imaging.Lanczos)
	}
	return img, nil
}

// filterFor picks the resampling filter. Fast delivery trades quality for
// speed and marks the result degraded.
func filterFor(opts imagemanager.FetchOptions) (imaging.ResampleFilter, bool) {
	switch {
	case opts.DeliveryMode == imagemanager.DeliveryFastFormat:
		return imaging.NearestNeighbor, true
	case opts.ResizeMode == imagemanager.ResizeExact, opts.DeliveryMode == imagemanager.DeliveryHighQuality:
		return imaging.Lanczos, false
	default:
		return imaging.Linear, false
	}
}

// scale applies the content mode. aspectFit never upscales unless an
// exact resize was requested; aspectFill always covers the target.
func scale(img image.Image, size assets.Size, mode assets.ContentMode, opts imagemanager.FetchOptions) (image.Image, bool) {
	if size.IsMaximum() || opts.ResizeMode == imagemanager.ResizeNone {
		return img, false
	}

	filter, degraded := filterFor(opts)
	start := time.Now()
	defer func() {
		metrics.ProviderFetchDuration.WithLabelValues("resize").Observe(time.Since(start).Seconds())
	}()

	if mode == assets.AspectFill {
		return imaging.Fill(img, size.Width, size.Height, imaging.Center, filter), degraded
	}

	if opts.ResizeMode == imagemanager.ResizeExact {
		b := img.Bounds()
		w, h := fitWithin(b.Dx(), b.Dy(), size.Width, size.Height)
		return imaging.Resize(img, w, h, filter), degraded
	}
	return imaging.Fit(img, size.Width, size.Height, filter), degraded
}

// fitWithin returns the largest w x h with the source aspect ratio that
// fits inside maxW x maxH, upscaling if needed.
func fitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return maxW, maxH
	}
	if srcW*maxH > srcH*maxW {
		return maxW, max(1, srcH*maxW/srcW)
	}
	return max(1, srcW*maxH/srcH), maxH
}

// render turns raw bytes into the image a request asked for. The libvips
// path shrinks at decode time and is preferred for concrete sizes unless
// fast delivery was requested.
func render(data []byte, format mediatypes.Format, req imagemanager.FetchRequest) (image.Image, bool, error) {
	opts := req.Options
	concrete := !req.Size.IsMaximum() && opts.ResizeMode != imagemanager.ResizeNone

	if concrete && opts.DeliveryMode != imagemanager.DeliveryFastFormat && IsVipsAvailable() {
		img, err := vipsThumbnail(data, req.Size.Width, req.Size.Height, req.Mode == assets.AspectFill)
		if err == nil {
			metrics.ProviderDecodeByFormat.WithLabelValues(string(format)).Inc()
			return img, false, nil
		}
		logging.Debug("vips thumbnail failed for request %s, falling back: %v", req.ID, err)
	}

	img, err := decode(data, format)
	if err != nil {
		return nil, false, err
	}
	out, degraded := scale(img, req.Size, req.Mode, opts)
	return out, degraded, nil
}
