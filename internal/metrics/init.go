package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"image", "data"} {
		for _, d := range []string{"started", "coalesced", "invalid"} {
			ImageRequestsTotal.WithLabelValues(kind, d)
		}
		for _, o := range []string{"success", "failure", "cancelled"} {
			ImageRequestOutcomes.WithLabelValues(kind, o)
		}
		ImageRequestDuration.WithLabelValues(kind)
	}

	for _, source := range []string{"local", "remote", "cache"} {
		ProviderFetchesTotal.WithLabelValues(source, "success")
		ProviderFetchesTotal.WithLabelValues(source, "error")
	}
	for _, phase := range []string{"load", "decode", "resize"} {
		ProviderFetchDuration.WithLabelValues(phase)
	}
	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "unknown"} {
		ProviderDecodeByFormat.WithLabelValues(format)
	}

	volumes := []string{"library", "cache", "database", "unknown"}
	for _, op := range []string{"stat", "open"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "upsert_asset", "get_asset", "list_assets",
		"get_asset_by_url", "fetch_assets", "delete_stale_assets", "stats", "get_metadata", "set_metadata", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}
	for _, f := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(f)
	}
}
