/*
Package provider implements the media fetch provider behind the image
manager.

Local resolves an asset's OriginalURL to a library file (plain absolute
path or file:// URL) or an http(s) download, reads it with progress
reporting, sniffs the real format and decodes it. Concrete target sizes go
through libvips when InitVips has been called, shrinking at decode time;
everything else uses the pure Go decoders and imaging for scaling:

	aspectFit   imaging.Fit, never upscales unless ResizeExact
	aspectFill  imaging.Fill anchored at the centre

Loads and decodes share a worker limiter sized for mixed CPU and I/O work,
and wait while the memory monitor reports critical usage.

StartCaching pre-decodes images into an in-memory go-cache keyed by the
same fingerprint the image manager uses as request id, so a later Fetch for
that request is served without touching storage.

Identical loads in flight at the same time, a request landing on an image
that is being pre-warmed for instance, share one singleflight call. The
call ends only when its last waiter has gone; a waiter that gives up just
stops receiving progress, and the next identical request after that starts
a fresh load.
*/
package provider
