package indexer

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/database"
	"media-fetcher/internal/filesystem"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/mediatypes"
	"media-fetcher/internal/metrics"

	// Decoders for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// headerSize is enough bytes for mediatypes.DetectFormat.
const headerSize = 32

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of files inspected concurrently
	NumWorkers int
	// BatchSize is the number of assets written per transaction
	BatchSize int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// Retry is used when opening files to read their headers
	Retry filesystem.RetryConfig
}

// DefaultParallelWalkerConfig returns defaults that are safe on NFS. The
// worker count can be raised with INDEX_WORKERS.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	numWorkers := 3
	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			numWorkers = count
		}
	}

	return ParallelWalkerConfig{
		NumWorkers:    numWorkers,
		BatchSize:     500,
		ChannelBuffer: 1000,
		SkipHidden:    true,
		Retry:         filesystem.DefaultRetryConfig(),
	}
}

type fileJob struct {
	path string
	info os.FileInfo
}

type fileResult struct {
	record *database.Record
	err    error
}

// ParallelWalker walks the library and inspects image files in parallel.
type ParallelWalker struct {
	config     ParallelWalkerConfig
	libraryDir string

	jobs    chan fileJob
	results chan fileResult

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesProcessed atomic.Int64
	dirsVisited    atomic.Int64
	errorsCount    atomic.Int64
}

// NewParallelWalker creates a walker over libraryDir, which must be an
// absolute path.
func NewParallelWalker(ctx context.Context, libraryDir string, config ParallelWalkerConfig) *ParallelWalker {
	ctx, cancel := context.WithCancel(ctx)
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}

	return &ParallelWalker{
		config:     config,
		libraryDir: libraryDir,
		jobs:       make(chan fileJob, config.ChannelBuffer),
		results:    make(chan fileResult, config.ChannelBuffer),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Walk returns a record for every image file under the library.
func (pw *ParallelWalker) Walk() ([]database.Record, error) {
	defer pw.cancel()

	logging.Info("Starting parallel library walk with %d workers", pw.config.NumWorkers)
	startTime := time.Now()
	metrics.IndexerParallelWorkers.Set(float64(pw.config.NumWorkers))

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var records []database.Record
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range pw.results {
			if result.err != nil {
				pw.errorsCount.Add(1)
				metrics.IndexerErrors.Inc()
				logging.Debug("Error inspecting file: %v", result.err)
				continue
			}
			if result.record != nil {
				records = append(records, *result.record)
			}
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Info("Parallel walk complete: %d images in %d directories in %v (errors: %d)",
		pw.filesProcessed.Load(),
		pw.dirsVisited.Load(),
		time.Since(startTime),
		pw.errorsCount.Load())

	return records, err
}

func (pw *ParallelWalker) walkAndEnqueue() error {
	return filepath.WalkDir(pw.libraryDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path != pw.libraryDir && pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			pw.dirsVisited.Add(1)
			return nil
		}

		if !mediatypes.IsImageFile(strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, info: info}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range pw.jobs {
		if pw.ctx.Err() != nil {
			continue
		}

		record, err := pw.inspect(job)
		if err == nil {
			pw.filesProcessed.Add(1)
		}
		pw.results <- fileResult{record: record, err: err}
	}

	logging.Debug("Worker %d finished", id)
}

// inspect sniffs the file's real format and reads its pixel dimensions
// without decoding it.
func (pw *ParallelWalker) inspect(job fileJob) (*database.Record, error) {
	f, err := filesystem.OpenWithRetry(pw.ctx, job.path, pw.config.Retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read header of %s: %w", job.path, err)
	}

	format := mediatypes.DetectFormat(header[:n])
	if format == mediatypes.FormatUnknown {
		format = mediatypes.FormatForExtension(strings.ToLower(filepath.Ext(job.path)))
	}

	var width, height int
	if format.Decodable() {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind %s: %w", job.path, err)
		}
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			logging.Debug("Could not read dimensions of %s: %v", job.path, err)
		} else {
			width, height = cfg.Width, cfg.Height
		}
	}

	return &database.Record{
		ImageAsset: assets.ImageAsset{
			ID:          assets.IdentifierForPath(job.path),
			URL:         FileURL(job.path),
			PixelWidth:  width,
			PixelHeight: height,
			Format:      string(format),
			Size:        job.info.Size(),
		},
		Path:    job.path,
		ModTime: job.info.ModTime(),
	}, nil
}

// FileURL returns the file:// URL for an absolute path.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// Stop cancels the walk.
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, dirs, errors int64) {
	return pw.filesProcessed.Load(), pw.dirsVisited.Load(), pw.errorsCount.Load()
}
