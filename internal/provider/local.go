package provider

import (
	"context"
	"net/http"
	"sync"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/filesystem"
	"media-fetcher/internal/fingerprint"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/mediatypes"
	"media-fetcher/internal/memory"
	"media-fetcher/internal/metrics"
	"media-fetcher/internal/workers"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Config configures a Local provider.
type Config struct {
	// Workers bounds concurrent loads and decodes. 0 sizes the pool with
	// workers.ForMixed.
	Workers int

	// CacheTTL is how long a pre-warmed image stays cached.
	CacheTTL time.Duration
	// CacheCleanupInterval is how often expired entries are purged. 0
	// disables the janitor goroutine.
	CacheCleanupInterval time.Duration

	// HTTPTimeout bounds a whole remote download.
	HTTPTimeout time.Duration
	// MaxBytes caps the size of any original read or downloaded.
	MaxBytes int64

	Retry filesystem.RetryConfig

	// Monitor, when set, holds new decodes while memory is critical and
	// skips pre-warming while it is high.
	Monitor *memory.Monitor

	// Client overrides the HTTP client. HTTPTimeout is ignored when set.
	Client *http.Client
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:             10 * time.Minute,
		CacheCleanupInterval: 20 * time.Minute,
		HTTPTimeout:          30 * time.Second,
		MaxBytes:             128 << 20,
		Retry:                filesystem.DefaultRetryConfig(),
	}
}

// Local loads originals from the filesystem or over HTTP and decodes them
// in process. It implements imagemanager.Provider and imagemanager.Cacher.
type Local struct {
	cfg     Config
	client  *http.Client
	limiter *workers.Limiter
	cache   *cache.Cache
	group   singleflight.Group

	mu    sync.Mutex
	loads map[string]*sharedLoad

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocal creates a provider.
func NewLocal(cfg Config) *Local {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForMixed(8)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = def.Retry
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = def.HTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	ctx, cancel := context.WithCancel(context.Background())
	logging.Debug("Provider: %d workers, cache TTL %v", cfg.Workers, cfg.CacheTTL)

	return &Local{
		cfg:     cfg,
		client:  client,
		limiter: workers.NewLimiter(cfg.Workers),
		cache:   cache.New(cfg.CacheTTL, cfg.CacheCleanupInterval),
		loads:   make(map[string]*sharedLoad),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Fetch implements imagemanager.Provider.
func (l *Local) Fetch(ctx context.Context, req imagemanager.FetchRequest, progress imagemanager.ProgressFunc) (*imagemanager.Response, error) {
	key := req.ID.Key()

	if req.Kind == imagemanager.KindImage {
		if v, ok := l.cache.Get(key); ok {
			metrics.ProviderCacheHits.Inc()
			metrics.ProviderFetchesTotal.WithLabelValues("cache", "success").Inc()
			progress(1)
			resp := *v.(*imagemanager.Response)
			resp.Source = imagemanager.SourceLocal
			return &resp, nil
		}
		metrics.ProviderCacheMisses.Inc()
	}

	return l.fetchShared(ctx, key, req, progress)
}

// sharedLoad tracks the callers of one key's singleflight call. The call
// runs under ctx, which ends only when the last caller has left or the
// provider closes.
type sharedLoad struct {
	ctx     context.Context
	cancel  context.CancelFunc
	next    int
	joiners map[int]imagemanager.ProgressFunc
}

type produceFunc func(ctx context.Context, progress imagemanager.ProgressFunc) (*imagemanager.Response, error)

// fetchShared joins a concurrent load of the same key, which happens when a
// request arrives while the same image is being pre-warmed.
func (l *Local) fetchShared(ctx context.Context, key string, req imagemanager.FetchRequest, progress imagemanager.ProgressFunc) (*imagemanager.Response, error) {
	return l.share(ctx, key, progress, func(ctx context.Context, progress imagemanager.ProgressFunc) (*imagemanager.Response, error) {
		return l.produce(ctx, req, progress)
	})
}

// share runs fn once for all concurrent callers of key. A caller whose ctx
// ends leaves without affecting the others; once every caller has left the
// call is cancelled and forgotten, so the next caller starts afresh.
// Progress reaches every caller still waiting.
func (l *Local) share(ctx context.Context, key string, progress imagemanager.ProgressFunc, fn produceFunc) (*imagemanager.Response, error) {
	sl, token := l.join(key, progress)
	defer l.leave(key, sl, token)

	ch := l.group.DoChan(key, func() (any, error) {
		return fn(sl.ctx, func(p float64) { l.relay(sl, p) })
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*imagemanager.Response), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) join(key string, progress imagemanager.ProgressFunc) (*sharedLoad, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sl, ok := l.loads[key]
	if !ok {
		ctx, cancel := context.WithCancel(l.ctx)
		sl = &sharedLoad{ctx: ctx, cancel: cancel, joiners: make(map[int]imagemanager.ProgressFunc)}
		l.loads[key] = sl
	}
	token := sl.next
	sl.next++
	sl.joiners[token] = progress
	return sl, token
}

func (l *Local) leave(key string, sl *sharedLoad, token int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(sl.joiners, token)
	if len(sl.joiners) > 0 {
		return
	}
	sl.cancel()
	delete(l.loads, key)
	l.group.Forget(key)
}

func (l *Local) relay(sl *sharedLoad, p float64) {
	l.mu.Lock()
	fns := make([]imagemanager.ProgressFunc, 0, len(sl.joiners))
	for _, fn := range sl.joiners {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

func (l *Local) produce(ctx context.Context, req imagemanager.FetchRequest, progress imagemanager.ProgressFunc) (resp *imagemanager.Response, err error) {
	if err := l.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	metrics.ProviderWorkersBusy.Set(float64(l.limiter.InUse()))
	defer func() {
		l.limiter.Release()
		metrics.ProviderWorkersBusy.Set(float64(l.limiter.InUse()))
	}()

	if err := l.cfg.Monitor.WaitIfPaused(ctx); err != nil {
		return nil, err
	}

	data, source, err := l.load(ctx, req.Asset.OriginalURL(), req.Options, progress)
	sourceLabel := "local"
	if source == imagemanager.SourceRemote {
		sourceLabel = "remote"
	}
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ProviderFetchesTotal.WithLabelValues(sourceLabel, status).Inc()
	}()
	if err != nil {
		return nil, err
	}

	format := mediatypes.DetectFormat(data)

	if req.Kind == imagemanager.KindData {
		progress(1)
		return &imagemanager.Response{Data: data, Format: string(format), Source: source}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, degraded, err := render(data, format, req)
	if err != nil {
		return nil, err
	}
	progress(1)

	return &imagemanager.Response{
		Image:      img,
		Format:     string(format),
		IsDegraded: degraded,
		Source:     source,
	}, nil
}

// cacheID is the fingerprint a matching image request would carry, so
// pre-warmed entries are found by Fetch under req.ID.
func cacheID(a assets.Asset, size assets.Size, mode assets.ContentMode) (fingerprint.Fingerprint, bool) {
	if a == nil {
		return 0, false
	}
	fp, err := fingerprint.Of(a.LocalIdentifier(), fingerprint.WithSize(size), fingerprint.WithContentMode(mode))
	if err != nil {
		return 0, false
	}
	return fp, true
}

// StartCaching pre-warms the cache in the background. Entries already
// cached are skipped; failures are logged and otherwise ignored.
func (l *Local) StartCaching(list []assets.Asset, size assets.Size, mode assets.ContentMode, opts imagemanager.FetchOptions) {
	if l.cfg.Monitor.ShouldThrottle() {
		logging.Debug("Skipping pre-warm of %d assets under memory pressure", len(list))
		return
	}
	if err := size.Validate(); err != nil || !mode.Valid() {
		logging.Debug("Skipping pre-warm with invalid parameters %s/%s", size, mode)
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.warm(list, size, mode, opts)
	}()
}

func (l *Local) warm(list []assets.Asset, size assets.Size, mode assets.ContentMode, opts imagemanager.FetchOptions) {
	g, ctx := errgroup.WithContext(l.ctx)
	g.SetLimit(l.cfg.Workers)

	for _, a := range list {
		a := a
		id, ok := cacheID(a, size, mode)
		if !ok {
			continue
		}
		key := id.Key()
		if _, found := l.cache.Get(key); found {
			continue
		}

		g.Go(func() error {
			req := imagemanager.FetchRequest{
				ID:      id,
				Kind:    imagemanager.KindImage,
				Asset:   a,
				Size:    size,
				Mode:    mode,
				Options: opts,
			}
			resp, err := l.fetchShared(ctx, key, req, nil)
			if err != nil {
				logging.Debug("Pre-warm of %s failed: %v", a.LocalIdentifier(), err)
				return nil
			}
			l.cache.Set(key, resp, cache.DefaultExpiration)
			return nil
		})
	}

	_ = g.Wait()
	metrics.ProviderCacheItems.Set(float64(l.cache.ItemCount()))
}

// StopCaching evicts the given entries.
func (l *Local) StopCaching(list []assets.Asset, size assets.Size, mode assets.ContentMode, _ imagemanager.FetchOptions) {
	for _, a := range list {
		if id, ok := cacheID(a, size, mode); ok {
			l.cache.Delete(id.Key())
		}
	}
	metrics.ProviderCacheItems.Set(float64(l.cache.ItemCount()))
}

// StopCachingAll empties the cache.
func (l *Local) StopCachingAll() {
	l.cache.Flush()
	metrics.ProviderCacheItems.Set(0)
}

// CachedItems reports the number of cached images.
func (l *Local) CachedItems() int {
	return l.cache.ItemCount()
}

// Wait blocks until background pre-warming has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}

// Close stops pre-warming and waits for it to wind down.
func (l *Local) Close() {
	l.cancel()
	l.wg.Wait()
}
