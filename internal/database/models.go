package database

import (
	"time"

	"media-fetcher/internal/assets"
)

// Record is an indexed asset together with where it lives on disk.
// *Record implements assets.Asset.
type Record struct {
	assets.ImageAsset
	Path    string    `json:"path,omitempty"`
	ModTime time.Time `json:"modTime"`
}

// AssetListing is one page of ListAssets.
type AssetListing struct {
	Items      []Record `json:"items"`
	TotalItems int      `json:"totalItems"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}
