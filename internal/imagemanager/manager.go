package imagemanager

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/fingerprint"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/metrics"
)

// Manager coalesces identical concurrent image requests into one provider
// fetch and fans the outcome out to every caller. Create one per
// application and pass it to whoever needs images.
type Manager struct {
	provider   Provider
	dispatcher *Dispatcher
	baseCtx    context.Context

	mu       sync.Mutex
	ledger   ledger
	registry registry
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithBaseContext parents every fetch context on ctx. Cancelling ctx
// cancels outstanding fetches; their observers receive a cancelled result.
func WithBaseContext(ctx context.Context) Option {
	return func(m *Manager) {
		m.baseCtx = ctx
	}
}

// New creates a Manager that fetches through p.
func New(p Provider, opts ...Option) *Manager {
	m := &Manager{
		provider: p,
		baseCtx:  context.Background(),
		ledger:   newLedger(),
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dispatcher = NewDispatcher()
	return m
}

// Dispatcher returns the delivery context every callback runs on.
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

func assetID(a assets.Asset) (string, error) {
	if a == nil {
		return "", invalidParameters("nil asset")
	}
	id := a.LocalIdentifier()
	if id == "" {
		return "", invalidParameters("empty asset identifier")
	}
	return id, nil
}

func imageRequestID(a assets.Asset, size assets.Size, mode assets.ContentMode) (RequestID, string, error) {
	id, err := assetID(a)
	if err != nil {
		return InvalidRequestID, "", err
	}
	if err := size.Validate(); err != nil {
		return InvalidRequestID, "", invalidParameters("%v", err)
	}
	if !mode.Valid() {
		return InvalidRequestID, "", invalidParameters("unknown content mode %q", mode)
	}
	fp, err := fingerprint.Of(id, fingerprint.WithSize(size), fingerprint.WithContentMode(mode))
	if err != nil {
		return InvalidRequestID, "", invalidParameters("%v", err)
	}
	return fp, id, nil
}

func dataRequestID(a assets.Asset) (RequestID, string, error) {
	id, err := assetID(a)
	if err != nil {
		return InvalidRequestID, "", err
	}
	fp, err := fingerprint.Of(id)
	if err != nil {
		return InvalidRequestID, "", invalidParameters("%v", err)
	}
	return fp, id, nil
}

// RequestID predicts the id RequestImage would return, without issuing a
// request.
func (m *Manager) RequestID(a assets.Asset, size assets.Size, mode assets.ContentMode) (RequestID, error) {
	id, _, err := imageRequestID(a, size, mode)
	return id, err
}

// DataRequestID predicts the id RequestImageData would return.
func (m *Manager) DataRequestID(a assets.Asset) (RequestID, error) {
	id, _, err := dataRequestID(a)
	return id, err
}

// RequestImage requests a decoded image of a at size, scaled per mode.
// If an identical request is in flight, onResult joins it and its id is
// returned. onResult runs exactly once on the delivery goroutine. Invalid
// parameters are reported through the returned error only.
func (m *Manager) RequestImage(a assets.Asset, size assets.Size, mode assets.ContentMode, opts FetchOptions, onResult ResultFunc) (RequestID, error) {
	task, err := m.ImageTask(a, size, mode, opts, onResult)
	if err != nil {
		return InvalidRequestID, err
	}
	return task.ID(), nil
}

// ImageTask is RequestImage returning the request's shared Task. onResult
// may be nil.
func (m *Manager) ImageTask(a assets.Asset, size assets.Size, mode assets.ContentMode, opts FetchOptions, onResult ResultFunc) (*Task, error) {
	id, aid, err := imageRequestID(a, size, mode)
	if err != nil {
		metrics.ImageRequestsTotal.WithLabelValues(KindImage.String(), "invalid").Inc()
		return nil, err
	}
	return m.start(FetchRequest{
		ID:      id,
		Kind:    KindImage,
		Asset:   a,
		Size:    size,
		Mode:    mode,
		Options: opts,
	}, aid, onResult)
}

// RequestImageData requests the original bytes of a.
func (m *Manager) RequestImageData(a assets.Asset, opts FetchOptions, onResult ResultFunc) (RequestID, error) {
	task, err := m.ImageDataTask(a, opts, onResult)
	if err != nil {
		return InvalidRequestID, err
	}
	return task.ID(), nil
}

// ImageDataTask is RequestImageData returning the shared Task.
func (m *Manager) ImageDataTask(a assets.Asset, opts FetchOptions, onResult ResultFunc) (*Task, error) {
	id, aid, err := dataRequestID(a)
	if err != nil {
		metrics.ImageRequestsTotal.WithLabelValues(KindData.String(), "invalid").Inc()
		return nil, err
	}
	return m.start(FetchRequest{
		ID:      id,
		Kind:    KindData,
		Asset:   a,
		Options: opts,
	}, aid, onResult)
}

func (m *Manager) start(req FetchRequest, aid string, onResult ResultFunc) (*Task, error) {
	kind := req.Kind.String()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}

	if e := m.ledger.get(req.ID); e != nil {
		e.attach(onResult, req.Options.ProgressHandler)
		m.mu.Unlock()
		metrics.ImageRequestsTotal.WithLabelValues(kind, "coalesced").Inc()
		logging.Debug("Request %s for asset %s joined in-flight fetch", req.ID, aid)
		return e.task, nil
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	e := &inFlight{
		id:      req.ID,
		kind:    req.Kind,
		assetID: aid,
		cancel:  cancel,
		task:    newTask(req.ID),
		started: time.Now(),
	}
	e.attach(onResult, req.Options.ProgressHandler)
	m.ledger.insert(e)
	m.mu.Unlock()

	metrics.ImageRequestsTotal.WithLabelValues(kind, "started").Inc()
	metrics.ImageRequestsInFlight.Inc()
	logging.Debug("Request %s started %s fetch for asset %s (%s %s)", req.ID, kind, aid, req.Size, req.Mode)

	go m.run(ctx, e, req)
	return e.task, nil
}

func (m *Manager) run(ctx context.Context, e *inFlight, req FetchRequest) {
	resp, err := m.fetch(ctx, e, req)

	result := Result{RequestID: e.id, Response: resp}
	switch {
	case err == nil && resp == nil:
		result.Err = &FetchError{RequestID: e.id, Err: errors.New("provider returned no response")}
	case err != nil && ctx.Err() != nil:
		result.Response = nil
		result.Err = &CancelledError{RequestID: e.id}
	case err != nil:
		result.Response = nil
		result.Err = &FetchError{RequestID: e.id, Err: err}
	}

	if !m.finish(e, result) {
		logging.Debug("Request %s: dropping result that arrived after cancellation", e.id)
	}
}

func (m *Manager) fetch(ctx context.Context, e *inFlight, req FetchRequest) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Provider panicked fetching request %s: %v", e.id, r)
			resp, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return m.provider.Fetch(ctx, req, func(p float64) {
		m.relayProgress(e, p)
	})
}

func clamp(p float64) float64 {
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 1:
		return 1
	}
	return p
}

// relayProgress queues p for the request's handlers and the asset's
// observers. Queueing happens under m.mu so nothing reported for e can run
// after its terminal result.
func (m *Manager) relayProgress(e *inFlight, p float64) {
	p = clamp(p)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledger.get(e.id) != e {
		return
	}
	m.deliverProgress(e.progress, p)
	m.deliverProgress(m.registry.forAsset(e.assetID), p)
}

func (m *Manager) deliverProgress(handlers []ProgressFunc, p float64) {
	for _, h := range handlers {
		h := h
		m.dispatcher.Submit(func() { h(p) })
	}
}

// finish removes e from the ledger and delivers result to its observers.
// It returns false if e had already left the ledger.
func (m *Manager) finish(e *inFlight, result Result) bool {
	m.mu.Lock()
	if !m.ledger.remove(e) {
		m.mu.Unlock()
		return false
	}
	if result.Succeeded() {
		m.deliverProgress(e.progress, 1)
		m.deliverProgress(m.registry.forAsset(e.assetID), 1)
	}
	purged := m.purgeIfIdle(e.assetID)
	m.complete(e, result)
	m.mu.Unlock()

	e.cancel()
	if purged > 0 {
		observerRemoved(purged)
	}
	m.record(e, result)
	return true
}

// purgeIfIdle drops the asset's progress observers once nothing for the
// asset is in flight. Callers hold m.mu.
func (m *Manager) purgeIfIdle(aid string) int {
	if m.ledger.assetActive(aid) {
		return 0
	}
	return m.registry.purge(aid)
}

// complete settles the task and queues result for every observer. Callers
// hold m.mu, which keeps Close from stopping the dispatcher between the
// ledger removal and the queueing.
func (m *Manager) complete(e *inFlight, result Result) {
	e.task.complete(result)
	for _, fn := range e.observers {
		fn := fn
		m.dispatcher.Submit(func() { fn(result) })
	}
}

func (m *Manager) record(e *inFlight, result Result) {
	outcome := "success"
	switch {
	case result.Cancelled():
		outcome = "cancelled"
	case result.Err != nil:
		outcome = "failure"
	}
	kind := e.kind.String()
	metrics.ImageRequestsInFlight.Dec()
	metrics.ImageRequestOutcomes.WithLabelValues(kind, outcome).Inc()
	metrics.ImageRequestDuration.WithLabelValues(kind).Observe(time.Since(e.started).Seconds())
	metrics.ImageResultObservers.Observe(float64(len(e.observers)))

	if result.Err != nil && outcome == "failure" {
		logging.Warn("Request %s for asset %s failed: %v", e.id, e.assetID, result.Err)
	} else {
		logging.Debug("Request %s for asset %s finished: %s (%d observers)", e.id, e.assetID, outcome, len(e.observers))
	}
}

// CancelImageRequest cancels the request and delivers a cancelled result
// to each of its observers. Unknown or finished ids are ignored.
func (m *Manager) CancelImageRequest(id RequestID) {
	m.mu.Lock()
	e := m.ledger.get(id)
	if e == nil {
		m.mu.Unlock()
		return
	}
	m.ledger.remove(e)
	purged := m.purgeIfIdle(e.assetID)
	result := Result{RequestID: id, Err: &CancelledError{RequestID: id}}
	m.complete(e, result)
	m.mu.Unlock()

	e.cancel()
	if purged > 0 {
		observerRemoved(purged)
	}
	m.record(e, result)
}

// IsRequesting reports whether id is in flight.
func (m *Manager) IsRequesting(id RequestID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.get(id) != nil
}

// InFlight returns the number of outstanding fetches.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.len()
}

// Observe subscribes onProgress to progress of any in-flight request for
// a. It returns false, registering nothing, if nothing for a is in flight.
// Observing the same (subscriber, asset) pair again replaces the callback.
func (m *Manager) Observe(subscriber string, a assets.Asset, onProgress ProgressFunc) (*Subscription, bool) {
	if onProgress == nil || a == nil || a.LocalIdentifier() == "" {
		return nil, false
	}
	aid := a.LocalIdentifier()
	s := &Subscription{m: m, subscriber: subscriber, assetID: aid, fn: onProgress}

	m.mu.Lock()
	if !m.ledger.assetActive(aid) {
		m.mu.Unlock()
		return nil, false
	}
	prev := m.registry.add(s)
	m.mu.Unlock()

	if prev != nil {
		prev.released.Store(true)
	} else {
		metrics.ProgressObservers.Inc()
	}
	return s, true
}

// Unobserve removes the subscriber's observer for a. Missing observers are
// ignored.
func (m *Manager) Unobserve(subscriber string, a assets.Asset) {
	if a == nil {
		return
	}
	m.mu.Lock()
	s := m.registry.remove(subscriber, a.LocalIdentifier())
	m.mu.Unlock()

	if s != nil {
		s.released.Store(true)
		observerRemoved(1)
	}
}

func observerRemoved(n int) {
	metrics.ProgressObservers.Sub(float64(n))
}

// IsActive reports whether a has a request in flight.
func (m *Manager) IsActive(a assets.Asset) bool {
	if a == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.assetActive(a.LocalIdentifier())
}

func (m *Manager) cacher() (Cacher, bool) {
	c, ok := m.provider.(Cacher)
	if !ok {
		logging.Debug("Provider %T does not support caching", m.provider)
	}
	return c, ok
}

// StartCachingImages asks the provider to pre-warm its cache. It is not
// coalesced with requests.
func (m *Manager) StartCachingImages(list []assets.Asset, size assets.Size, mode assets.ContentMode, opts FetchOptions) {
	if c, ok := m.cacher(); ok {
		c.StartCaching(list, size, mode, opts)
	}
}

// StopCachingImages evicts the given entries from the provider's cache.
func (m *Manager) StopCachingImages(list []assets.Asset, size assets.Size, mode assets.ContentMode, opts FetchOptions) {
	if c, ok := m.cacher(); ok {
		c.StopCaching(list, size, mode, opts)
	}
}

// StopCachingImagesForAllAssets empties the provider's cache.
func (m *Manager) StopCachingImagesForAllAssets() {
	if c, ok := m.cacher(); ok {
		c.StopCachingAll()
	}
}

// Close cancels every outstanding request, delivers the cancelled results
// and stops the delivery goroutine. Later requests fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.ledger.all()
	results := make([]Result, len(pending))
	for i, e := range pending {
		m.ledger.remove(e)
		results[i] = Result{RequestID: e.id, Err: &CancelledError{RequestID: e.id}}
		m.complete(e, results[i])
	}
	purged := m.registry.count()
	m.registry = newRegistry()
	m.mu.Unlock()

	if purged > 0 {
		observerRemoved(purged)
	}
	for i, e := range pending {
		e.cancel()
		m.record(e, results[i])
	}
	if len(pending) > 0 {
		logging.Info("Image manager closed, cancelled %d in-flight requests", len(pending))
	}
	m.dispatcher.Close()
}
