package filesystem

// Observer records retry metrics. The implementation lives in the metrics
// package so that filesystem does not import it.
type Observer interface {
	// op is "stat" or "open"; volume is the resolved label
	// ("library", "cache", "database" or "unknown").
	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveRetryDuration(op, volume string, durationSeconds float64)
	ObserveStaleError(op, volume string)
}

// defaultObserver is nil in tests; recording is then skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
