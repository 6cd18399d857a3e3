package assets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Asset identifies a media item and where its original content lives.
// Implementations are immutable.
type Asset interface {
	// LocalIdentifier persistently identifies the asset.
	LocalIdentifier() string
	// OriginalURL is the location of the original content (file path,
	// file:// URL or http(s) URL).
	OriginalURL() string
}

// ImageAsset is an indexed image with its metadata.
type ImageAsset struct {
	ID               string    `json:"localIdentifier"`
	URL              string    `json:"originalUrl"`
	PixelWidth       int       `json:"pixelWidth"`
	PixelHeight      int       `json:"pixelHeight"`
	Format           string    `json:"format,omitempty"`
	Size             int64     `json:"size"`
	CreationDate     time.Time `json:"creationDate"`
	ModificationDate time.Time `json:"modificationDate"`
}

// LocalIdentifier implements Asset.
func (a *ImageAsset) LocalIdentifier() string { return a.ID }

// OriginalURL implements Asset.
func (a *ImageAsset) OriginalURL() string { return a.URL }

// Touch bumps the modification date ahead of an update.
func (a *ImageAsset) Touch() {
	a.ModificationDate = time.Now()
}

var (
	// assetNamespace scopes identifiers derived from library paths.
	assetNamespace = uuid.MustParse("3f1c8a52-64b9-4d5e-9c0b-7a1f6d2e8b40")
	// placeholderNamespace scopes identifiers of assets with no metadata.
	placeholderNamespace = uuid.MustParse("b7e2d4a1-0c3f-4e86-a5d9-2f8c1b6e7a93")
)

// IdentifierForPath returns the stable identifier for a library file.
func IdentifierForPath(absPath string) string {
	return uuid.NewSHA1(assetNamespace, []byte(absPath)).String()
}

// NewImageAsset creates an asset for the given identifier and location.
func NewImageAsset(id, url string, width, height int) *ImageAsset {
	now := time.Now()
	return &ImageAsset{
		ID:               id,
		URL:              url,
		PixelWidth:       width,
		PixelHeight:      height,
		CreationDate:     now,
		ModificationDate: now,
	}
}

// Placeholder stands in for an asset whose metadata is not available
// locally. Its identifier is derived from the URL so two placeholders for
// the same URL coalesce while different URLs never do.
type Placeholder struct {
	id  string
	url string
}

// NewPlaceholder returns the placeholder asset for url.
func NewPlaceholder(url string) *Placeholder {
	return &Placeholder{
		id:  uuid.NewSHA1(placeholderNamespace, []byte(url)).String(),
		url: url,
	}
}

// LocalIdentifier implements Asset.
func (p *Placeholder) LocalIdentifier() string { return p.id }

// OriginalURL implements Asset.
func (p *Placeholder) OriginalURL() string { return p.url }

// IsPlaceholder reports whether a is a placeholder.
func IsPlaceholder(a Asset) bool {
	_, ok := a.(*Placeholder)
	return ok
}

// Ref is a bare Asset built from an identifier and a URL, for callers
// that hold no richer metadata.
type Ref struct {
	ID  string
	URL string
}

// LocalIdentifier implements Asset.
func (r Ref) LocalIdentifier() string { return r.ID }

// OriginalURL implements Asset.
func (r Ref) OriginalURL() string { return r.URL }

func (r Ref) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.URL)
}
