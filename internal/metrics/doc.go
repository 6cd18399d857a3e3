// Package metrics provides Prometheus instrumentation for the media fetcher.
//
// All metrics are prefixed with "media_fetcher_" and registered through
// promauto at package initialisation.
//
// # Metric Categories
//
// ## Image Request Coordination
//
//   - ImageRequestsTotal: requests by kind ("image", "data") and disposition
//     ("started" for a new fetch, "coalesced" when joined to an in-flight
//     fetch, "invalid" when rejected)
//   - ImageRequestOutcomes: terminal outcomes by kind
//   - ImageRequestsInFlight: distinct fetches currently in the ledger
//   - ImageRequestDuration: fetch start to terminal outcome
//   - ImageResultObservers: observers notified per terminal outcome
//   - ProgressObservers: registered progress subscriptions
//   - DispatcherQueueDepth: callbacks waiting for delivery
//
// ## Provider
//
//   - ProviderFetchesTotal, ProviderFetchDuration, ProviderDecodeByFormat
//   - ProviderWorkersBusy
//   - ProviderCacheHits, ProviderCacheMisses, ProviderCacheItems
//
// ## HTTP, Database, Indexer, Filesystem, Memory
//
// Request counters and latencies, query timings, indexer runs, NFS retry
// counters and memory backpressure state.
//
// # Usage
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape, then start a Collector to refresh the
// gauges derived from the asset library and the provider cache.
package metrics
