package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failure  int
	stale    int
	volumes  []string
}

func (r *recordingObserver) ObserveRetryAttempt(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	r.volumes = append(r.volumes, volume)
}

func (r *recordingObserver) ObserveRetrySuccess(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *recordingObserver) ObserveRetryFailure(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
}

func (r *recordingObserver) ObserveRetryDuration(op, volume string, _ float64) {}

func (r *recordingObserver) ObserveStaleError(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	obs := &recordingObserver{}
	prev := defaultObserver
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(prev) })
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &fs.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"library":  "/library",
		"cache":    "/cache",
		"database": "/database",
		"nested":   "/library/shared",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/library/2024/beach.jpg", "library"},
		{"/library", "library"},
		{"/library/shared/a.png", "nested"},
		{"/cache/ab/cd.webp", "cache"},
		{"/database/media.db", "database"},
		{"/libraryextra/x.jpg", "unknown"},
		{"/tmp/x.jpg", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/library/a.jpg"); got != "unknown" {
		t.Errorf("nil resolver returned %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	prev := defaultResolver
	t.Cleanup(func() { SetDefaultVolumeResolver(prev) })

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"library": "/library"}))

	config := DefaultRetryConfig()
	if got := config.resolveVolume("/library/a.jpg"); got != "library" {
		t.Errorf("default resolver: got %q, want library", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"cache": "/library"})
	if got := config.resolveVolume("/library/a.jpg"); got != "cache" {
		t.Errorf("config resolver: got %q, want cache", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(context.Background(), path, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	_, err = StatWithRetry(context.Background(), filepath.Join(dir, "missing.jpg"), fastConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	if err := os.WriteFile(path, []byte("png!"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(context.Background(), path, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	obs := withObserver(t)
	_, err = OpenWithRetry(context.Background(), filepath.Join(dir, "missing.png"), fastConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
	if obs.attempts != 0 {
		t.Errorf("non-stale error retried %d times", obs.attempts)
	}
}

func TestWithRetry_RecoversFromStale(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	got, err := withRetry(context.Background(), "open", "/library/a.jpg", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
	if obs.attempts != 2 || obs.stale != 2 || obs.success != 1 || obs.failure != 0 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry(context.Background(), "stat", "/cache/x", fastConfig(), func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if obs.attempts != 3 || obs.failure != 1 {
		t.Errorf("attempts=%d failure=%d, want 3 and 1", obs.attempts, obs.failure)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	_, err := withRetry(ctx, "open", "/library/a.jpg", config, func() (int, error) {
		return 0, syscall.ESTALE
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string]string{
		"library":  "/library",
		"cache":    "/cache",
		"database": "/database",
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vr.Resolve("/library/2024/summer/beach.jpg")
	}
}
