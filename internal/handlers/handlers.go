package handlers

import (
	"time"

	"media-fetcher/internal/database"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/indexer"
	"media-fetcher/internal/streaming"
)

// Handlers serves the HTTP API.
type Handlers struct {
	db        *database.Database
	indexer   *indexer.Indexer
	images    *imagemanager.Manager
	startTime time.Time

	// jpegQuality is used when encoding image responses as JPEG.
	jpegQuality int
	stream      streaming.Config
}

// New creates the handlers. images must be shared with any other caller of
// the manager so that requests coalesce.
func New(db *database.Database, idx *indexer.Indexer, images *imagemanager.Manager) *Handlers {
	return &Handlers{
		db:          db,
		indexer:     idx,
		images:      images,
		startTime:   time.Now(),
		jpegQuality: 85,
		stream:      streaming.DefaultConfig(),
	}
}
