package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/mediatypes"
	"media-fetcher/internal/metrics"
)

// NameCollation orders by URL case-insensitively.
const NameCollation = "original_url COLLATE NOCASE"

// maxFetchBatch keeps IN lists below SQLite's bound variable limit.
const maxFetchBatch = 500

const assetColumns = `local_identifier, original_url, path, pixel_width, pixel_height,
	format, size, mod_time, created_at, modified_at`

// ListOptions controls ListAssets.
type ListOptions struct {
	SortField mediatypes.SortField
	SortOrder mediatypes.SortOrder
	// Format restricts the listing to one format when set.
	Format   mediatypes.Format
	Page     int
	PageSize int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var modTime, createdAt, modifiedAt int64
	err := row.Scan(
		&r.ID, &r.URL, &r.Path, &r.PixelWidth, &r.PixelHeight,
		&r.Format, &r.Size, &modTime, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ModTime = time.Unix(modTime, 0)
	r.CreationDate = time.Unix(createdAt, 0)
	r.ModificationDate = time.Unix(modifiedAt, 0)
	return &r, nil
}

// UpsertAsset inserts or updates an asset within a batch. The modification
// date only moves when the file's size, mtime or format changed; seen_at
// always moves so DeleteAssetsNotSeenSince can find vanished files.
func (d *Database) UpsertAsset(b *Batch, r *Record) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_asset", start, err) }()

	query := `
	INSERT INTO assets (local_identifier, original_url, path, pixel_width, pixel_height, format, size, mod_time,
		created_at, modified_at, seen_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'), strftime('%s', 'now'), strftime('%s', 'now'))
	ON CONFLICT(local_identifier) DO UPDATE SET
		original_url = excluded.original_url,
		path = excluded.path,
		pixel_width = excluded.pixel_width,
		pixel_height = excluded.pixel_height,
		format = excluded.format,
		size = excluded.size,
		mod_time = excluded.mod_time,
		seen_at = strftime('%s', 'now'),
		modified_at = CASE
			WHEN assets.size != excluded.size
			  OR assets.mod_time != excluded.mod_time
			  OR assets.format != excluded.format
			THEN strftime('%s', 'now')
			ELSE assets.modified_at
		END
	`

	// The transaction controls the operation's lifecycle.
	result, err := b.tx.ExecContext(context.Background(), query,
		r.ID,
		r.URL,
		r.Path,
		r.PixelWidth,
		r.PixelHeight,
		r.Format,
		r.Size,
		r.ModTime.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", r.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("upsert_asset").Observe(float64(rows))
	}
	return nil
}

// DeleteAssetsNotSeenSince removes assets the indexer has not touched since
// cutoff.
func (d *Database) DeleteAssetsNotSeenSince(b *Batch, cutoff time.Time) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_stale_assets", start, err) }()

	result, err := b.tx.ExecContext(context.Background(),
		"DELETE FROM assets WHERE seen_at < ?",
		cutoff.Unix(),
	)
	if err != nil {
		return 0, err
	}

	n, err = result.RowsAffected()
	if err == nil && n > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_stale_assets").Observe(float64(n))
	}
	return n, err
}

// GetAsset returns the asset with the given local identifier.
func (d *Database) GetAsset(ctx context.Context, id string) (r *Record, err error) {
	start := time.Now()
	defer func() { recordQuery("get_asset", start, err) }()

	return d.getOne(ctx, "local_identifier", id)
}

// GetAssetByURL returns the asset whose original URL is url.
func (d *Database) GetAssetByURL(ctx context.Context, url string) (r *Record, err error) {
	start := time.Now()
	defer func() { recordQuery("get_asset_by_url", start, err) }()

	return d.getOne(ctx, "original_url", url)
}

func (d *Database) getOne(ctx context.Context, column, value string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE `+column+` = ?`, value)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, value)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// normalizeListOptions clamps paging to valid bounds.
func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}
	return opts
}

// getSortColumn maps a sort field to its ORDER BY expression. Unknown
// fields sort by name.
func getSortColumn(field mediatypes.SortField) string {
	switch field {
	case mediatypes.SortByDate:
		return "mod_time"
	case mediatypes.SortBySize:
		return "size"
	default:
		return NameCollation
	}
}

// ListAssets returns a page of indexed assets.
func (d *Database) ListAssets(ctx context.Context, opts ListOptions) (listing *AssetListing, err error) {
	start := time.Now()
	defer func() { recordQuery("list_assets", start, err) }()

	opts = normalizeListOptions(opts)

	where := ""
	var args []any
	if opts.Format != "" {
		where = " WHERE format = ?"
		args = append(args, string(opts.Format))
	}

	sortColumn := getSortColumn(opts.SortField)
	sortDir := "ASC"
	if opts.SortOrder == mediatypes.SortDesc {
		sortDir = "DESC"
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(opts.PageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	offset := (opts.Page - 1) * opts.PageSize

	query := fmt.Sprintf(`SELECT %s FROM assets%s ORDER BY %s %s, local_identifier LIMIT ? OFFSET ?`,
		assetColumns, where, sortColumn, sortDir)
	rows, err := d.db.QueryContext(ctx, query, append(args, opts.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, opts.PageSize)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		items = append(items, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &AssetListing{
		Items:      items,
		TotalItems: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}

// FetchAssets resolves original URLs to assets, in input order. URLs with
// no indexed asset, or a failed lookup, yield a placeholder; the batch as a
// whole never fails.
func (d *Database) FetchAssets(ctx context.Context, urls []string) []assets.Asset {
	start := time.Now()
	var err error
	defer func() { recordQuery("fetch_assets", start, err) }()

	found := make(map[string]*Record, len(urls))
	for lo := 0; lo < len(urls); lo += maxFetchBatch {
		hi := min(lo+maxFetchBatch, len(urls))
		if err = d.fetchChunk(ctx, urls[lo:hi], found); err != nil {
			logging.Warn("Asset lookup failed, substituting placeholders: %v", err)
			break
		}
	}

	out := make([]assets.Asset, len(urls))
	placeholders := 0
	for i, u := range urls {
		if r, ok := found[u]; ok {
			out[i] = r
			continue
		}
		out[i] = assets.NewPlaceholder(u)
		placeholders++
	}
	if placeholders > 0 {
		logging.Debug("FetchAssets: %d of %d URLs not indexed", placeholders, len(urls))
	}
	return out
}

func (d *Database) fetchChunk(ctx context.Context, urls []string, found map[string]*Record) error {
	if len(urls) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")

	rows, err := d.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE original_url IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return err
		}
		found[r.URL] = r
	}
	return rows.Err()
}

// RefreshStats recomputes the library statistics returned by GetStats.
func (d *Database) RefreshStats(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT format, COUNT(*), COALESCE(SUM(size), 0) FROM assets GROUP BY format`)
	if err != nil {
		return err
	}
	defer rows.Close()

	stats := metrics.Stats{ByFormat: map[string]int{}}
	for rows.Next() {
		var format string
		var count int
		var bytes int64
		if err := rows.Scan(&format, &count, &bytes); err != nil {
			return err
		}
		if format == "" {
			format = string(mediatypes.FormatUnknown)
		}
		stats.ByFormat[format] += count
		stats.TotalAssets += count
		stats.TotalBytes += bytes
	}
	if err := rows.Err(); err != nil {
		return err
	}

	d.statsMu.Lock()
	d.stats = stats
	d.statsMu.Unlock()
	return nil
}

// GetStats returns the statistics from the last RefreshStats. It
// implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()

	byFormat := make(map[string]int, len(d.stats.ByFormat))
	for k, v := range d.stats.ByFormat {
		byFormat[k] = v
	}
	return metrics.Stats{
		TotalAssets: d.stats.TotalAssets,
		TotalBytes:  d.stats.TotalBytes,
		ByFormat:    byFormat,
	}
}
