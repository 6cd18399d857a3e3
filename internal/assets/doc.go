// Package assets defines the asset references the fetch layer works with:
// the Asset interface, indexed ImageAssets, placeholders for assets whose
// metadata is missing, and the target Size and ContentMode of a request.
package assets
