package metrics

import (
	"time"

	"media-fetcher/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current asset library statistics
type Stats struct {
	TotalAssets int
	TotalBytes  int64
	ByFormat    map[string]int
}

// CacheSizer reports how many images the provider currently holds.
type CacheSizer interface {
	CachedItems() int
}

// Collector periodically collects and updates gauge metrics
type Collector struct {
	statsProvider StatsProvider
	cache         CacheSizer
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector. cache may be nil.
func NewCollector(provider StatsProvider, cache CacheSizer, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		statsProvider: provider,
		cache:         cache,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.cache != nil {
		ProviderCacheItems.Set(float64(c.cache.CachedItems()))
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	AssetsTotal.Reset()
	for format, count := range stats.ByFormat {
		AssetsTotal.WithLabelValues(format).Set(float64(count))
	}
	AssetBytesTotal.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: assets=%d, bytes=%d", stats.TotalAssets, stats.TotalBytes)
}
