package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-fetcher/internal/database"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/metrics"
)

const (
	// Minimum images to index before reporting ready
	minAssetsForReady = 100

	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond

	// Default polling interval for change detection
	defaultPollInterval = 30 * time.Second
)

// Store is the part of the database the indexer writes to.
type Store interface {
	BeginBatch() (*database.Batch, error)
	EndBatch(b *database.Batch, err error) error
	UpsertAsset(b *database.Batch, r *database.Record) error
	DeleteAssetsNotSeenSince(b *database.Batch, cutoff time.Time) (int64, error)
	RefreshStats(ctx context.Context) error
	SetLastIndexRun(ctx context.Context, t time.Time) error
}

// Indexer keeps the asset source in sync with the library directory.
type Indexer struct {
	store         Store
	libraryDir    string
	indexInterval time.Duration
	pollInterval  time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	assetsIndexed atomic.Int64
	indexProgress atomic.Value

	parallelConfig ParallelWalkerConfig

	onIndexComplete func()

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	AssetsIndexed int64     `json:"assetsIndexed"`
	IsIndexing    bool      `json:"isIndexing"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	AssetsIndexed     int64          `json:"assetsIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates an indexer for libraryDir. An indexInterval of 0 disables
// periodic full re-indexing.
func New(store Store, libraryDir string, indexInterval time.Duration) *Indexer {
	if abs, err := filepath.Abs(libraryDir); err == nil {
		libraryDir = abs
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		store:              store,
		libraryDir:         libraryDir,
		indexInterval:      indexInterval,
		pollInterval:       defaultPollInterval,
		ctx:                ctx,
		cancel:             cancel,
		startTime:          time.Now(),
		parallelConfig:     DefaultParallelWalkerConfig(),
		lastSubdirModTimes: make(map[string]time.Time),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetPollInterval sets the interval for polling-based change detection.
// A negative interval disables polling.
func (idx *Indexer) SetPollInterval(interval time.Duration) {
	if interval != 0 {
		idx.pollInterval = interval
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback invoked after every completed index.
func (idx *Indexer) SetOnIndexComplete(callback func()) {
	idx.onIndexComplete = callback
}

// Start runs the initial index in the background and starts change
// detection and periodic re-indexing.
func (idx *Indexer) Start() {
	idx.goRun(func() {
		logging.Info("Starting initial index in background...")
		if err := idx.Index(); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	})

	if idx.pollInterval > 0 {
		idx.goRun(idx.pollForChanges)
	}
	if idx.indexInterval > 0 {
		idx.goRun(idx.periodicIndex)
	}
}

func (idx *Indexer) goRun(fn func()) {
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		fn()
	}()
}

// Stop stops background work and waits for it to exit. It is safe to
// call more than once.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(idx.cancel)
	idx.wg.Wait()
}

// IsReady reports whether enough of the library is indexed to serve
// traffic.
func (idx *Indexer) IsReady() bool {
	if idx.assetsIndexed.Load() >= minAssetsForReady {
		return true
	}

	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	indexed := idx.assetsIndexed.Load()
	status := HealthStatus{
		Ready:         idx.initialIndexComplete || indexed >= minAssetsForReady,
		Indexing:      idx.isIndexing,
		StartTime:     idx.startTime,
		Uptime:        time.Since(idx.startTime).Round(time.Second).String(),
		LastIndexed:   idx.lastIndexTime,
		AssetsIndexed: indexed,
	}

	if idx.isIndexing {
		progress := idx.getProgress()
		status.IndexProgress = &progress
	}
	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}

// Index performs a full index of the library. It returns immediately if
// an index is already running.
func (idx *Indexer) Index() error {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return nil
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting library indexing of %s...", idx.libraryDir)

	if _, err := os.Stat(idx.libraryDir); err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("library directory: %w", err)
	}

	idx.assetsIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{IsIndexing: true, StartedAt: startTime})

	walker := NewParallelWalker(idx.ctx, idx.libraryDir, idx.parallelConfig)
	records, err := walker.Walk()
	if err != nil && !errors.Is(err, fs.SkipAll) {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("parallel walk error: %w", err)
	}
	if idx.ctx.Err() != nil {
		return idx.ctx.Err()
	}

	if err := idx.processBatchedRecords(records, startTime); err != nil {
		metrics.IndexerErrors.Inc()
		return err
	}

	// Anything not upserted during this run is gone from disk.
	if err := idx.cleanupMissingAssets(startTime); err != nil {
		logging.Error("Error cleaning up missing assets: %v", err)
		metrics.IndexerErrors.Inc()
	}

	idx.finalizeIndex(startTime, int64(len(records)))
	idx.updateLastKnownState()

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(time.Since(startTime).Seconds())
	metrics.IndexerAssetsProcessed.Add(float64(len(records)))

	return nil
}

func (idx *Indexer) processBatchedRecords(records []database.Record, startTime time.Time) error {
	batchSize := idx.parallelConfig.BatchSize
	if batchSize < 1 {
		batchSize = 500
	}
	logging.Info("Processing %d assets in batches of %d", len(records), batchSize)

	for i := 0; i < len(records); i += batchSize {
		if err := idx.ctx.Err(); err != nil {
			return err
		}

		end := min(i+batchSize, len(records))
		if err := idx.processBatch(records[i:end]); err != nil {
			logging.Error("Error processing batch: %v", err)
			continue
		}

		idx.assetsIndexed.Store(int64(end))
		idx.indexProgress.Store(IndexProgress{
			AssetsIndexed: int64(end),
			IsIndexing:    true,
			StartedAt:     startTime,
		})

		if end < len(records) {
			time.Sleep(batchDelay)
		}
		if end%5000 == 0 || end == len(records) {
			logging.Info("Database insert progress: %d/%d assets", end, len(records))
		}
	}
	return nil
}

// processBatch writes a batch of records in a single transaction.
func (idx *Indexer) processBatch(records []database.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := idx.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	for i := range records {
		if err := idx.store.UpsertAsset(batch, &records[i]); err != nil {
			logging.Warn("Error upserting asset %s: %v", records[i].Path, err)
		}
	}

	if err := idx.store.EndBatch(batch, nil); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (idx *Indexer) cleanupMissingAssets(indexTime time.Time) error {
	batch, err := idx.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}

	deleted, err := idx.store.DeleteAssetsNotSeenSince(batch, indexTime)
	if endErr := idx.store.EndBatch(batch, err); endErr != nil {
		return fmt.Errorf("failed to commit cleanup: %w", endErr)
	}

	if deleted > 0 {
		logging.Info("Removed %d missing assets from index", deleted)
	}
	return nil
}

func (idx *Indexer) finalizeIndex(startTime time.Time, total int64) {
	duration := time.Since(startTime)
	now := time.Now()

	idx.indexMu.Lock()
	idx.lastIndexTime = now
	idx.indexMu.Unlock()

	idx.assetsIndexed.Store(total)
	idx.indexProgress.Store(IndexProgress{AssetsIndexed: total})

	if err := idx.store.RefreshStats(idx.ctx); err != nil {
		logging.Warn("Failed to refresh library stats: %v", err)
	}
	if err := idx.store.SetLastIndexRun(idx.ctx, now); err != nil {
		logging.Warn("Failed to record index run: %v", err)
	}

	logging.Info("Index complete: %d assets in %v", total, duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete()
	}
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if err := idx.Index(); err != nil {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// pollForChanges re-indexes when a cheap check of the library's top
// levels shows a change.
func (idx *Indexer) pollForChanges() {
	for !idx.IsReady() {
		select {
		case <-time.After(time.Second):
		case <-idx.ctx.Done():
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", idx.pollInterval)

	ticker := time.NewTicker(idx.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Library changes detected, triggering re-index")
				if err := idx.Index(); err != nil {
					logging.Error("Re-index after change detection failed: %v", err)
				}
			}
		case <-idx.ctx.Done():
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// detectChanges checks the root's modification time, the number of
// top-level entries and the modification times of top-level directories.
// It never walks the whole tree.
func (idx *Indexer) detectChanges() (bool, error) {
	start := time.Now()
	defer func() {
		metrics.IndexerPollDuration.Observe(time.Since(start).Seconds())
		metrics.IndexerPollChecksTotal.Inc()
	}()

	rootInfo, err := os.Stat(idx.libraryDir)
	if err != nil {
		return false, fmt.Errorf("failed to stat library directory: %w", err)
	}

	idx.stateMu.RLock()
	lastRootModTime := idx.lastRootModTime
	lastTopLevelCount := idx.lastTopLevelCount
	lastSubdirModTimes := idx.lastSubdirModTimes
	idx.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		logging.Debug("Root directory modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		metrics.IndexerPollChangesDetected.Inc()
		return true, nil
	}

	count, subdirs, err := idx.scanTopLevel()
	if err != nil {
		return false, err
	}

	if count != lastTopLevelCount {
		logging.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, count)
		metrics.IndexerPollChangesDetected.Inc()
		return true, nil
	}

	for name, mod := range subdirs {
		last, ok := lastSubdirModTimes[name]
		if !ok || mod.After(last) {
			logging.Debug("Subdirectory %s changed", name)
			metrics.IndexerPollChangesDetected.Inc()
			return true, nil
		}
	}
	return false, nil
}

func (idx *Indexer) scanTopLevel() (int, map[string]time.Time, error) {
	entries, err := os.ReadDir(idx.libraryDir)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	count := 0
	subdirs := make(map[string]time.Time)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		count++
		if !entry.IsDir() {
			continue
		}
		if info, err := os.Stat(filepath.Join(idx.libraryDir, entry.Name())); err == nil {
			subdirs[entry.Name()] = info.ModTime()
		}
	}
	return count, subdirs, nil
}

func (idx *Indexer) updateLastKnownState() {
	rootInfo, err := os.Stat(idx.libraryDir)
	if err != nil {
		logging.Warn("Failed to stat library directory for state update: %v", err)
		return
	}
	count, subdirs, err := idx.scanTopLevel()
	if err != nil {
		logging.Warn("Failed to scan library directory for state update: %v", err)
		return
	}

	idx.stateMu.Lock()
	idx.lastRootModTime = rootInfo.ModTime()
	idx.lastTopLevelCount = count
	idx.lastSubdirModTimes = subdirs
	idx.stateMu.Unlock()
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// TriggerIndex starts a re-index in the background.
func (idx *Indexer) TriggerIndex() {
	if idx.ctx.Err() != nil {
		return
	}
	idx.goRun(func() {
		if err := idx.Index(); err != nil {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	})
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	return idx.getProgress()
}
