package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/mediatypes"
)

func setupTestDB(t testing.TB) (*Database, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func testRecord(id, url string, size int64, format mediatypes.Format, modTime time.Time) *Record {
	return &Record{
		ImageAsset: assets.ImageAsset{
			ID:          id,
			URL:         url,
			PixelWidth:  640,
			PixelHeight: 480,
			Format:      string(format),
			Size:        size,
		},
		Path:    "/library/" + id,
		ModTime: modTime,
	}
}

func insertRecords(t testing.TB, db *Database, records ...*Record) {
	t.Helper()

	batch, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	for _, r := range records {
		if err = db.UpsertAsset(batch, r); err != nil {
			break
		}
	}
	if err := db.EndBatch(batch, err); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}

func TestNewDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := db.db.PingContext(context.Background()); err != nil {
		t.Errorf("Database ping failed: %v", err)
	}
}

func TestNewDatabaseMissingDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "test.db"))
	if err == nil {
		t.Fatal("New() in a missing directory succeeded")
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	insertRecords(t, db, testRecord("a", "file:///library/a.jpg", 10, mediatypes.FormatJPEG, time.Unix(100, 0)))
	db.Close()

	db, err = New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if _, err := db.GetAsset(context.Background(), "a"); err != nil {
		t.Errorf("GetAsset() after reopen error = %v", err)
	}
}

func TestUpsertAndGetAsset(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	want := testRecord("a1", "file:///library/a1.png", 2048, mediatypes.FormatPNG, time.Unix(1700000000, 0))
	insertRecords(t, db, want)

	got, err := db.GetAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAsset() error = %v", err)
	}
	if got.URL != want.URL || got.Path != want.Path || got.Size != want.Size || got.Format != "png" {
		t.Errorf("GetAsset() = %+v, want %+v", got, want)
	}
	if got.PixelWidth != 640 || got.PixelHeight != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", got.PixelWidth, got.PixelHeight)
	}
	if !got.ModTime.Equal(want.ModTime) {
		t.Errorf("ModTime = %v, want %v", got.ModTime, want.ModTime)
	}
	if got.CreationDate.IsZero() || got.ModificationDate.IsZero() {
		t.Error("timestamps not populated")
	}

	var a assets.Asset = got
	if a.LocalIdentifier() != "a1" || a.OriginalURL() != want.URL {
		t.Errorf("Asset view = %s %s", a.LocalIdentifier(), a.OriginalURL())
	}

	byURL, err := db.GetAssetByURL(ctx, want.URL)
	if err != nil || byURL.ID != "a1" {
		t.Errorf("GetAssetByURL() = %v, %v", byURL, err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	r := testRecord("a", "file:///library/a.jpg", 100, mediatypes.FormatJPEG, time.Unix(100, 0))
	insertRecords(t, db, r)
	first, _ := db.GetAsset(ctx, "a")

	r.Size = 200
	r.PixelWidth = 1024
	insertRecords(t, db, r)

	got, err := db.GetAsset(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 200 || got.PixelWidth != 1024 {
		t.Errorf("upsert did not update: %+v", got)
	}
	if !got.CreationDate.Equal(first.CreationDate) {
		t.Errorf("CreationDate changed from %v to %v", first.CreationDate, got.CreationDate)
	}
}

func TestGetAssetNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	_, err := db.GetAsset(context.Background(), "nope")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("GetAsset() error = %v, want ErrAssetNotFound", err)
	}
	_, err = db.GetAssetByURL(context.Background(), "file:///nope.jpg")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("GetAssetByURL() error = %v, want ErrAssetNotFound", err)
	}
}

func TestEndBatchRollback(t *testing.T) {
	db, _ := setupTestDB(t)

	batch, err := db.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertAsset(batch, testRecord("x", "file:///x.jpg", 1, mediatypes.FormatJPEG, time.Now())); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := db.EndBatch(batch, boom); !errors.Is(err, boom) {
		t.Errorf("EndBatch() error = %v, want boom", err)
	}

	if _, err := db.GetAsset(context.Background(), "x"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("rolled back asset still present: %v", err)
	}
}

func TestListAssets(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	insertRecords(t, db,
		testRecord("1", "file:///library/b.jpg", 300, mediatypes.FormatJPEG, time.Unix(300, 0)),
		testRecord("2", "file:///library/a.png", 100, mediatypes.FormatPNG, time.Unix(200, 0)),
		testRecord("3", "file:///library/C.jpg", 200, mediatypes.FormatJPEG, time.Unix(100, 0)),
	)

	tests := []struct {
		name    string
		opts    ListOptions
		wantIDs []string
		total   int
	}{
		{"default name order", ListOptions{}, []string{"2", "1", "3"}, 3},
		{"name desc", ListOptions{SortOrder: mediatypes.SortDesc}, []string{"3", "1", "2"}, 3},
		{"date asc", ListOptions{SortField: mediatypes.SortByDate}, []string{"3", "2", "1"}, 3},
		{"size desc", ListOptions{SortField: mediatypes.SortBySize, SortOrder: mediatypes.SortDesc}, []string{"1", "3", "2"}, 3},
		{"format filter", ListOptions{Format: mediatypes.FormatJPEG}, []string{"1", "3"}, 2},
		{"second page", ListOptions{PageSize: 2, Page: 2}, []string{"3"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := db.ListAssets(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListAssets() error = %v", err)
			}
			if listing.TotalItems != tt.total {
				t.Errorf("TotalItems = %d, want %d", listing.TotalItems, tt.total)
			}
			var ids []string
			for _, item := range listing.Items {
				ids = append(ids, item.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
					break
				}
			}
		})
	}

	listing, _ := db.ListAssets(ctx, ListOptions{PageSize: 2})
	if listing.TotalPages != 2 || listing.Page != 1 {
		t.Errorf("pagination = page %d of %d, want 1 of 2", listing.Page, listing.TotalPages)
	}
}

func TestListAssetsEmpty(t *testing.T) {
	db, _ := setupTestDB(t)

	listing, err := db.ListAssets(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if listing.TotalItems != 0 || len(listing.Items) != 0 || listing.TotalPages != 1 || listing.PageSize != 100 {
		t.Errorf("empty listing = %+v", listing)
	}
}

func TestFetchAssetsSubstitutesPlaceholders(t *testing.T) {
	db, _ := setupTestDB(t)

	insertRecords(t, db,
		testRecord("a", "file:///library/a.jpg", 1, mediatypes.FormatJPEG, time.Now()),
		testRecord("b", "file:///library/b.jpg", 1, mediatypes.FormatJPEG, time.Now()),
	)

	urls := []string{"file:///library/b.jpg", "https://example.com/missing.jpg", "file:///library/a.jpg", "https://example.com/missing.jpg"}
	got := db.FetchAssets(context.Background(), urls)

	if len(got) != len(urls) {
		t.Fatalf("FetchAssets() returned %d assets, want %d", len(got), len(urls))
	}
	if got[0].LocalIdentifier() != "b" || got[2].LocalIdentifier() != "a" {
		t.Errorf("indexed assets out of order: %s, %s", got[0].LocalIdentifier(), got[2].LocalIdentifier())
	}
	if !assets.IsPlaceholder(got[1]) || got[1].OriginalURL() != urls[1] {
		t.Errorf("missing URL did not yield a placeholder: %#v", got[1])
	}
	if got[1].LocalIdentifier() != got[3].LocalIdentifier() {
		t.Error("placeholders for the same URL have different identifiers")
	}
	if got[1].LocalIdentifier() == "" {
		t.Error("placeholder has an empty identifier")
	}
}

func TestFetchAssetsLargeBatch(t *testing.T) {
	db, _ := setupTestDB(t)

	var records []*Record
	var urls []string
	for i := 0; i < maxFetchBatch+20; i++ {
		url := fmt.Sprintf("file:///library/%04d.jpg", i)
		records = append(records, testRecord(fmt.Sprintf("id-%d", i), url, 1, mediatypes.FormatJPEG, time.Now()))
		urls = append(urls, url)
	}
	insertRecords(t, db, records...)

	got := db.FetchAssets(context.Background(), urls)
	for i, a := range got {
		if assets.IsPlaceholder(a) {
			t.Fatalf("asset %d is a placeholder", i)
		}
	}
}

func TestFetchAssetsAfterClose(t *testing.T) {
	db, _ := setupTestDB(t)
	db.Close()

	got := db.FetchAssets(context.Background(), []string{"file:///a.jpg"})
	if len(got) != 1 || !assets.IsPlaceholder(got[0]) {
		t.Errorf("FetchAssets() on a closed database = %v, want one placeholder", got)
	}
}

func TestDeleteAssetsNotSeenSince(t *testing.T) {
	db, _ := setupTestDB(t)

	insertRecords(t, db,
		testRecord("a", "file:///a.jpg", 1, mediatypes.FormatJPEG, time.Now()),
		testRecord("b", "file:///b.jpg", 1, mediatypes.FormatJPEG, time.Now()),
	)

	tests := []struct {
		name   string
		cutoff time.Time
		want   int64
	}{
		{"nothing older than an hour ago", time.Now().Add(-time.Hour), 0},
		{"everything older than the future", time.Now().Add(time.Hour), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := db.BeginBatch()
			if err != nil {
				t.Fatal(err)
			}
			n, err := db.DeleteAssetsNotSeenSince(batch, tt.cutoff)
			if endErr := db.EndBatch(batch, err); endErr != nil {
				t.Fatal(endErr)
			}
			if n != tt.want {
				t.Errorf("deleted %d, want %d", n, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if got := db.GetStats(); got.TotalAssets != 0 || got.ByFormat == nil {
		t.Errorf("initial stats = %+v", got)
	}

	insertRecords(t, db,
		testRecord("a", "file:///a.jpg", 100, mediatypes.FormatJPEG, time.Now()),
		testRecord("b", "file:///b.jpg", 50, mediatypes.FormatJPEG, time.Now()),
		testRecord("c", "file:///c.png", 25, mediatypes.FormatPNG, time.Now()),
		testRecord("d", "file:///d.x", 5, "", time.Now()),
	)
	if err := db.RefreshStats(ctx); err != nil {
		t.Fatalf("RefreshStats() error = %v", err)
	}

	stats := db.GetStats()
	if stats.TotalAssets != 4 || stats.TotalBytes != 180 {
		t.Errorf("totals = %d assets, %d bytes; want 4, 180", stats.TotalAssets, stats.TotalBytes)
	}
	if stats.ByFormat["jpeg"] != 2 || stats.ByFormat["png"] != 1 || stats.ByFormat["unknown"] != 1 {
		t.Errorf("ByFormat = %v", stats.ByFormat)
	}

	// The returned map is a copy.
	stats.ByFormat["jpeg"] = 99
	if db.GetStats().ByFormat["jpeg"] != 2 {
		t.Error("GetStats() exposes internal state")
	}
}

func TestMetadata(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetMetadata(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetMetadata(missing) error = %v, want sql.ErrNoRows", err)
	}

	if err := db.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMetadata(ctx, "k"); err != nil || v != "v2" {
		t.Errorf("GetMetadata(k) = %q, %v; want v2", v, err)
	}
}

func TestLastIndexRun(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetLastIndexRun(ctx)
	if err != nil || !got.IsZero() {
		t.Fatalf("GetLastIndexRun() = %v, %v; want zero", got, err)
	}

	when := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if err := db.SetLastIndexRun(ctx, when); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetLastIndexRun(ctx)
	if err != nil || !got.Equal(when) {
		t.Errorf("GetLastIndexRun() = %v, %v; want %v", got, err, when)
	}

	if err := db.SetLastIndexRun(ctx, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetLastIndexRun(ctx); !got.IsZero() {
		t.Errorf("cleared run = %v, want zero", got)
	}
}

func TestUpdateDBMetricsAndVacuum(t *testing.T) {
	db, _ := setupTestDB(t)

	db.UpdateDBMetrics()
	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum() error = %v", err)
	}
}

func TestMigrationsRecordSchemaVersion(t *testing.T) {
	db, dbPath := setupTestDB(t)

	var version int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("user_version = %d, want %d", version, len(migrations))
	}

	// Reopening must not re-run the ALTER TABLE migration.
	db.Close()
	reopened, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	reopened.Close()
}

func TestDSN(t *testing.T) {
	got := dsn("/database/media.db")
	for _, want := range []string{"/database/media.db?", "_journal_mode=WAL", "_busy_timeout=5000"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn() = %q, missing %q", got, want)
		}
	}
}

func TestRepairSidecarPermissions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")
	wal := dbPath + "-wal"
	if err := os.WriteFile(wal, nil, 0o400); err != nil {
		t.Fatal(err)
	}

	repairSidecarPermissions(dbPath)

	info, err := os.Stat(wal)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		t.Errorf("WAL mode = %v, want owner-writable", info.Mode())
	}
}
