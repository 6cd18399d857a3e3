package imagemanager

import (
	"context"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/fingerprint"
)

// RequestID identifies an in-flight request. It equals the request's
// fingerprint, so callers can predict it without issuing the request.
type RequestID = fingerprint.Fingerprint

// InvalidRequestID is never issued for a real request.
const InvalidRequestID RequestID = 0

// ProgressFunc receives a progress value in [0, 1].
type ProgressFunc func(progress float64)

// RequestKind distinguishes decoded image requests from raw data requests.
type RequestKind int

const (
	KindImage RequestKind = iota
	KindData
)

func (k RequestKind) String() string {
	if k == KindData {
		return "data"
	}
	return "image"
}

// FetchRequest describes one provider fetch. Size and Mode are zero for
// data requests.
type FetchRequest struct {
	ID      RequestID
	Kind    RequestKind
	Asset   assets.Asset
	Size    assets.Size
	Mode    assets.ContentMode
	Options FetchOptions
}

// Provider performs the actual load and decode. Fetch may call progress
// from any goroutine and must return promptly once ctx is cancelled.
type Provider interface {
	Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (*Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req FetchRequest, progress ProgressFunc) (*Response, error)

// Fetch implements Provider.
func (f ProviderFunc) Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (*Response, error) {
	return f(ctx, req, progress)
}

// Cacher is implemented by providers with their own pre-warm cache.
type Cacher interface {
	StartCaching(list []assets.Asset, size assets.Size, mode assets.ContentMode, opts FetchOptions)
	StopCaching(list []assets.Asset, size assets.Size, mode assets.ContentMode, opts FetchOptions)
	StopCachingAll()
}
