// Package fingerprint derives the deterministic identifier of an image
// request from the asset identity, the target size and the content mode.
//
// The inputs are rendered as a canonical query string:
//
//	asset://<escaped id>?height=100&mode=aspectFill&width=100
//
// with keys sorted by name, hashed with xxhash and truncated to 32 bits.
// Requests that share a fingerprint are coalesced into one fetch.
package fingerprint
