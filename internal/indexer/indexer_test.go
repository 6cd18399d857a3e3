package indexer

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/database"
	"media-fetcher/internal/mediatypes"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

// setupLibrary creates three indexable images plus files that must be
// skipped.
func setupLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeImage(t, filepath.Join(dir, "a.png"), 40, 30)
	writeImage(t, filepath.Join(dir, "2024", "b.PNG"), 10, 20)
	// Extension lies; the header wins.
	writeImage(t, filepath.Join(dir, "2024", "summer", "c.jpg"), 5, 5)
	writeImage(t, filepath.Join(dir, ".hidden", "d.png"), 5, 5)
	writeImage(t, filepath.Join(dir, ".e.png"), 5, 5)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644)

	return dir
}

func newTestIndexer(t *testing.T, db *database.Database, dir string) *Indexer {
	t.Helper()
	idx := New(db, dir, 0)
	idx.SetPollInterval(-1)
	cfg := DefaultParallelWalkerConfig()
	cfg.NumWorkers = 2
	cfg.BatchSize = 2
	idx.SetParallelConfig(cfg)
	t.Cleanup(idx.Stop)
	return idx
}

func TestIndexRegistersImages(t *testing.T) {
	db := setupTestDB(t)
	dir := setupLibrary(t)
	idx := newTestIndexer(t, db, dir)

	completed := 0
	idx.SetOnIndexComplete(func() { completed++ })

	if err := idx.Index(); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if completed != 1 {
		t.Errorf("completion callback ran %d times, want 1", completed)
	}

	listing, err := db.ListAssets(context.Background(), database.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if listing.TotalItems != 3 {
		t.Fatalf("indexed %d assets, want 3: %+v", listing.TotalItems, listing.Items)
	}

	path := filepath.Join(dir, "2024", "summer", "c.jpg")
	r, err := db.GetAsset(context.Background(), assets.IdentifierForPath(path))
	if err != nil {
		t.Fatalf("GetAsset() error = %v", err)
	}
	if r.URL != FileURL(path) || r.Path != path {
		t.Errorf("record location = %s %s", r.URL, r.Path)
	}
	if r.Format != string(mediatypes.FormatPNG) {
		t.Errorf("Format = %q, want png from the header", r.Format)
	}
	if r.PixelWidth != 5 || r.PixelHeight != 5 {
		t.Errorf("dimensions = %dx%d, want 5x5", r.PixelWidth, r.PixelHeight)
	}

	b, err := db.GetAssetByURL(context.Background(), FileURL(filepath.Join(dir, "2024", "b.PNG")))
	if err != nil || b.PixelWidth != 10 || b.PixelHeight != 20 {
		t.Errorf("b.PNG = %+v, %v", b, err)
	}

	if stats := db.GetStats(); stats.TotalAssets != 3 {
		t.Errorf("stats not refreshed: %+v", stats)
	}
	if last, _ := db.GetLastIndexRun(context.Background()); last.IsZero() {
		t.Error("last index run not recorded")
	}
}

func TestIndexIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	dir := setupLibrary(t)
	idx := newTestIndexer(t, db, dir)

	for i := 0; i < 2; i++ {
		if err := idx.Index(); err != nil {
			t.Fatalf("Index() run %d error = %v", i, err)
		}
	}
	listing, _ := db.ListAssets(context.Background(), database.ListOptions{})
	if listing.TotalItems != 3 {
		t.Errorf("after re-index TotalItems = %d, want 3", listing.TotalItems)
	}
}

func TestIndexPrunesVanishedFiles(t *testing.T) {
	db := setupTestDB(t)
	dir := setupLibrary(t)
	idx := newTestIndexer(t, db, dir)

	if err := idx.Index(); err != nil {
		t.Fatal(err)
	}
	gone := filepath.Join(dir, "a.png")
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	// seen_at has one-second resolution.
	time.Sleep(1100 * time.Millisecond)

	if err := idx.Index(); err != nil {
		t.Fatal(err)
	}
	listing, _ := db.ListAssets(context.Background(), database.ListOptions{})
	if listing.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", listing.TotalItems)
	}
	got := db.FetchAssets(context.Background(), []string{FileURL(gone)})
	if !assets.IsPlaceholder(got[0]) {
		t.Error("removed file still resolves to an indexed asset")
	}
}

func TestIndexMissingLibrary(t *testing.T) {
	db := setupTestDB(t)
	idx := newTestIndexer(t, db, filepath.Join(t.TempDir(), "missing"))

	if err := idx.Index(); err == nil {
		t.Fatal("Index() of a missing library succeeded")
	}
}

func TestReadinessAndHealth(t *testing.T) {
	db := setupTestDB(t)
	idx := newTestIndexer(t, db, setupLibrary(t))

	if idx.IsReady() {
		t.Error("ready before any index")
	}
	if idx.IsIndexing() || !idx.LastIndexTime().IsZero() {
		t.Error("fresh indexer reports activity")
	}

	if err := idx.Index(); err != nil {
		t.Fatal(err)
	}

	if !idx.IsReady() {
		t.Error("not ready after index")
	}
	status := idx.GetHealthStatus()
	if !status.Ready || status.Indexing || status.AssetsIndexed != 3 || status.IndexProgress != nil {
		t.Errorf("health = %+v", status)
	}
	if status.LastIndexed.IsZero() {
		t.Error("LastIndexed not set")
	}
	if p := idx.GetProgress(); p.IsIndexing || p.AssetsIndexed != 3 {
		t.Errorf("progress = %+v", p)
	}
}

func TestStartAndStop(t *testing.T) {
	db := setupTestDB(t)
	idx := New(db, setupLibrary(t), time.Hour)
	idx.SetPollInterval(10 * time.Millisecond)

	idx.Start()

	deadline := time.Now().Add(5 * time.Second)
	for !idx.IsReady() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !idx.IsReady() {
		t.Fatal("initial index did not complete")
	}

	idx.TriggerIndex()
	idx.Stop()
	idx.Stop()
	idx.TriggerIndex()

	if idx.GetHealthStatus().InitialIndexError != "" {
		t.Errorf("initial index error = %q", idx.GetHealthStatus().InitialIndexError)
	}
}

func TestDetectChanges(t *testing.T) {
	db := setupTestDB(t)
	dir := setupLibrary(t)
	idx := newTestIndexer(t, db, dir)

	changed, err := idx.detectChanges()
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("no change reported before the first index")
	}

	if err := idx.Index(); err != nil {
		t.Fatal(err)
	}
	if changed, _ := idx.detectChanges(); changed {
		t.Error("change reported right after indexing")
	}

	writeImage(t, filepath.Join(dir, "new.png"), 3, 3)
	// Force the root mtime check to pass so the count check is exercised.
	idx.stateMu.Lock()
	idx.lastRootModTime = time.Now().Add(time.Hour)
	idx.stateMu.Unlock()

	if changed, _ := idx.detectChanges(); !changed {
		t.Error("new top-level file not detected")
	}
}

func TestFileURL(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/library/a.jpg", "file:///library/a.jpg"},
		{"/library/summer 2024/b.png", "file:///library/summer%202024/b.png"},
	}
	for _, tt := range tests {
		if got := FileURL(tt.path); got != tt.want {
			t.Errorf("FileURL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParallelWalkerStop(t *testing.T) {
	dir := setupLibrary(t)
	pw := NewParallelWalker(context.Background(), dir, DefaultParallelWalkerConfig())
	pw.Stop()

	records, _ := pw.Walk()
	if len(records) != 0 {
		t.Errorf("stopped walker returned %d records", len(records))
	}
}

func TestParallelWalkerStats(t *testing.T) {
	dir := setupLibrary(t)
	pw := NewParallelWalker(context.Background(), dir, DefaultParallelWalkerConfig())

	records, err := pw.Walk()
	if err != nil {
		t.Fatal(err)
	}
	files, dirs, errs := pw.Stats()
	if len(records) != 3 || files != 3 || errs != 0 {
		t.Errorf("records=%d files=%d errors=%d", len(records), files, errs)
	}
	// root, 2024, 2024/summer
	if dirs != 3 {
		t.Errorf("dirs = %d, want 3", dirs)
	}
}

func TestDefaultParallelWalkerConfigEnv(t *testing.T) {
	t.Setenv("INDEX_WORKERS", "7")
	if got := DefaultParallelWalkerConfig().NumWorkers; got != 7 {
		t.Errorf("NumWorkers = %d, want 7", got)
	}
	t.Setenv("INDEX_WORKERS", "zero")
	if got := DefaultParallelWalkerConfig().NumWorkers; got != 3 {
		t.Errorf("NumWorkers = %d, want default 3", got)
	}
}
