package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"media-fetcher/internal/filesystem"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/metrics"
)

// ErrNetworkAccessDenied is returned for remote assets when the request
// did not allow network access.
var ErrNetworkAccessDenied = errors.New("network access not allowed")

// location is a resolved OriginalURL.
type location struct {
	path   string
	remote *url.URL
}

func resolve(raw string) (location, error) {
	if filepath.IsAbs(raw) {
		return location{path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return location{}, fmt.Errorf("invalid asset URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return location{}, fmt.Errorf("file URL without a path: %q", raw)
		}
		return location{path: filepath.FromSlash(u.Path)}, nil
	case "http", "https":
		return location{remote: u}, nil
	}
	return location{}, fmt.Errorf("unsupported asset URL %q", raw)
}

// progressReader reports the share of total read so far, in steps of at
// least 5%. Reads stop once ctx ends.
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	total    int64
	read     int64
	last     float64
	scale    float64
	progress imagemanager.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.ctx != nil {
		if err := p.ctx.Err(); err != nil {
			return 0, err
		}
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && p.progress != nil {
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		if frac-p.last >= 0.05 || (frac == 1 && p.last < 1) {
			p.last = frac
			p.progress(frac * p.scale)
		}
	}
	return n, err
}

// loadShare is the part of overall progress attributed to reading bytes;
// decoding accounts for the rest.
const loadShare = 0.8

func (l *Local) load(ctx context.Context, raw string, opts imagemanager.FetchOptions, progress imagemanager.ProgressFunc) ([]byte, imagemanager.Source, error) {
	loc, err := resolve(raw)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	defer func() {
		metrics.ProviderFetchDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	if loc.remote != nil {
		if !opts.NetworkAccessAllowed {
			return nil, 0, fmt.Errorf("%w: %s", ErrNetworkAccessDenied, loc.remote.Redacted())
		}
		data, err := l.download(ctx, loc.remote, progress)
		return data, imagemanager.SourceRemote, err
	}

	data, err := l.readFile(ctx, loc.path, progress)
	return data, imagemanager.SourceLocal, err
}

func (l *Local) readFile(ctx context.Context, path string, progress imagemanager.ProgressFunc) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(ctx, path, l.cfg.Retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", imagemanager.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	if size > l.cfg.MaxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, size, l.cfg.MaxBytes)
	}

	data, err := io.ReadAll(&progressReader{ctx: ctx, r: f, total: size, scale: loadShare, progress: progress})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (l *Local) download(ctx context.Context, u *url.URL, progress imagemanager.ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", imagemanager.ErrNotFound, u.Redacted())
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("download %s: unexpected status %s", u.Redacted(), resp.Status)
	case resp.ContentLength > l.cfg.MaxBytes:
		return nil, fmt.Errorf("download %s: %d bytes exceeds limit %d", u.Redacted(), resp.ContentLength, l.cfg.MaxBytes)
	}

	body := io.LimitReader(resp.Body, l.cfg.MaxBytes+1)
	data, err := io.ReadAll(&progressReader{ctx: ctx, r: body, total: resp.ContentLength, scale: loadShare, progress: progress})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	if int64(len(data)) > l.cfg.MaxBytes {
		return nil, fmt.Errorf("download %s: body exceeds limit %d", u.Redacted(), l.cfg.MaxBytes)
	}
	return data, nil
}
