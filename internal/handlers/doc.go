// Package handlers provides the HTTP API of the media fetcher.
//
// It includes handlers for:
//   - Listing and describing indexed assets
//   - Fetching scaled images and original data through the shared
//     imagemanager.Manager, so identical concurrent requests share one fetch
//   - Predicting, inspecting and cancelling request ids
//   - Pre-warming and evicting the provider cache
//   - Health checks, statistics and build information
//
// Routes are added to a gorilla/mux router with [Handlers.Register].
package handlers
