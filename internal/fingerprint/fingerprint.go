package fingerprint

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"media-fetcher/internal/assets"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the coalescing key of an image request.
type Fingerprint uint32

// ErrEmptyAssetID is returned when no asset identity is supplied.
var ErrEmptyAssetID = errors.New("fingerprint: empty asset identifier")

type params struct {
	size *assets.Size
	mode *assets.ContentMode
}

// Option adds an optional component to a fingerprint.
type Option func(*params)

// WithSize includes the target size. assets.MaximumSize is encoded as
// size=original so it never aliases an explicit 0x0 request.
func WithSize(s assets.Size) Option {
	return func(p *params) {
		p.size = &s
	}
}

// WithContentMode includes the content mode.
func WithContentMode(m assets.ContentMode) Option {
	return func(p *params) {
		p.mode = &m
	}
}

// Canonical builds the canonical query string for the inputs. Query keys
// are sorted, so the result does not depend on option order.
func Canonical(assetID string, opts ...Option) (string, error) {
	if assetID == "" {
		return "", ErrEmptyAssetID
	}

	var p params
	for _, opt := range opts {
		opt(&p)
	}

	q := url.Values{}
	if p.size != nil {
		if p.size.IsMaximum() {
			q.Set("size", "original")
		} else {
			q.Set("width", strconv.Itoa(p.size.Width))
			q.Set("height", strconv.Itoa(p.size.Height))
		}
	}
	if p.mode != nil {
		q.Set("mode", string(*p.mode))
	}

	s := "asset://" + url.PathEscape(assetID)
	if len(q) > 0 {
		// Encode sorts by key
		s += "?" + q.Encode()
	}
	return s, nil
}

// Of returns the fingerprint of an asset and optional fetch parameters.
// The 64-bit digest wraps into 32 bits; collisions are accepted. Zero is
// reserved as the invalid id, so a digest that truncates to zero maps to 1.
func Of(assetID string, opts ...Option) (Fingerprint, error) {
	canonical, err := Canonical(assetID, opts...)
	if err != nil {
		return 0, err
	}
	return fromCanonical(canonical), nil
}

func fromCanonical(canonical string) Fingerprint {
	fp := Fingerprint(uint32(xxhash.Sum64String(canonical)))
	if fp == 0 {
		fp = 1
	}
	return fp
}

// Key renders the fingerprint for use as a string cache key.
func (f Fingerprint) Key() string {
	return strconv.FormatUint(uint64(f), 16)
}

// String renders the fingerprint in decimal, the form used for request ids.
func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 10)
}

// Parse reads the decimal form produced by String.
func Parse(s string) (Fingerprint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: invalid value %q: %w", s, err)
	}
	return Fingerprint(n), nil
}
