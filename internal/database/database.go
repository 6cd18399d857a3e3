package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-fetcher/internal/logging"
	"media-fetcher/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrAssetNotFound is returned when no asset matches a lookup.
var ErrAssetNotFound = errors.New("asset not found")

// Database is the SQLite-backed asset source.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	stats   metrics.Stats
	statsMu sync.RWMutex
}

// New opens (creating if needed) the database at dbPath, which is the full
// path of the database file. Its parent directory must exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)
	repairSidecarPermissions(dbPath)

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{
		db:     db,
		dbPath: dbPath,
		stats:  metrics.Stats{ByFormat: map[string]int{}},
	}
	if err := d.open(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after open failure: %v", closeErr)
		}
		return nil, err
	}

	logging.Info("Database ready at %s (schema version %d)", dbPath, len(migrations))
	return d, nil
}

// dsn enables WAL and a busy timeout so the indexer's write batches do not
// fail readers with "database is locked".
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_temp_store", "MEMORY")
	q.Set("_cache_size", "10000")
	return path + "?" + q.Encode()
}

func (d *Database) open(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	d.db.SetMaxOpenConns(25)
	d.db.SetMaxIdleConns(10)
	d.db.SetConnMaxLifetime(time.Hour)

	if err := d.migrate(ctx); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return nil
}

// migrations are applied in order; PRAGMA user_version records how many
// have run. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS assets (
		local_identifier TEXT PRIMARY KEY,
		original_url TEXT NOT NULL UNIQUE,
		path TEXT NOT NULL DEFAULT '',
		pixel_width INTEGER NOT NULL DEFAULT 0,
		pixel_height INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		modified_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_assets_mod_time ON assets(mod_time);
	CREATE INDEX IF NOT EXISTS idx_assets_size ON assets(size);
	CREATE INDEX IF NOT EXISTS idx_assets_format ON assets(format);
	CREATE INDEX IF NOT EXISTS idx_assets_url_nocase ON assets(original_url COLLATE NOCASE);
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);`,

	// seen_at is separate from modified_at so re-indexing an unchanged
	// file does not bump its modification date.
	`ALTER TABLE assets ADD COLUMN seen_at INTEGER NOT NULL DEFAULT 0;
	UPDATE assets SET seen_at = modified_at;
	CREATE INDEX IF NOT EXISTS idx_assets_seen_at ON assets(seen_at);`,
}

func (d *Database) migrate(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("migrate", start, err) }()

	var version int
	if err = d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		logging.Info("Applying database migration %d", i+1)
		if err = d.applyMigration(ctx, i); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *Database) applyMigration(ctx context.Context, i int) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, migrations[i]); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Batch is a write transaction opened with BeginBatch.
type Batch struct {
	tx    *sql.Tx
	start time.Time
}

// BeginBatch starts a transaction for batch operations. The caller must
// finish it with EndBatch.
func (d *Database) BeginBatch() (*Batch, error) {
	d.mu.Lock()
	start := time.Now()

	// Transaction lifetime is managed by EndBatch, not a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Batch{tx: tx, start: start}, nil
}

// EndBatch commits the batch, or rolls it back when err is non-nil.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := b.tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.tx.Commit()
}

// Vacuum optimizes the database.
func (d *Database) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates connection and file size gauges.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	for label, path := range map[string]string{
		"main": d.dbPath,
		"wal":  d.dbPath + "-wal",
		"shm":  d.dbPath + "-shm",
	} {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		metrics.DBSizeBytes.WithLabelValues(label).Set(float64(size))
	}
}

// repairSidecarPermissions makes read-only WAL and SHM files writable. A
// read-only database file is only reported.
func repairSidecarPermissions(dbPath string) {
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		if path == dbPath {
			logging.Warn("Database file %s is read-only (mode %v)", path, info.Mode())
			continue
		}
		if err := os.Chmod(path, 0o600); err != nil {
			logging.Error("%s is read-only and could not be fixed: %v", path, err)
			continue
		}
		logging.Info("Fixed permissions on %s", path)
	}
}
