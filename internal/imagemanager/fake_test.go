package imagemanager

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"media-fetcher/internal/assets"
)

// fakeProvider blocks every fetch until release is closed or the fetch is
// cancelled.
type fakeProvider struct {
	mu      sync.Mutex
	calls   map[RequestID]int
	started chan FetchRequest
	release chan struct{}

	// progress is reported once the fetch has started
	progress []float64
	resp     *Response
	err      error
	// ignoreCancel makes Fetch wait for release even after cancellation
	ignoreCancel bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:   make(map[RequestID]int),
		started: make(chan FetchRequest, 64),
		release: make(chan struct{}),
		resp: &Response{
			Image:  image.NewRGBA(image.Rect(0, 0, 100, 100)),
			Format: "png",
			Source: SourceLocal,
		},
	}
}

func (f *fakeProvider) Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (*Response, error) {
	f.mu.Lock()
	f.calls[req.ID]++
	f.mu.Unlock()

	f.started <- req
	for _, p := range f.progress {
		progress(p)
	}

	if f.ignoreCancel {
		<-f.release
	} else {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func (f *fakeProvider) callsFor(id RequestID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeProvider) waitStarted(t *testing.T) FetchRequest {
	t.Helper()
	select {
	case req := <-f.started:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("provider fetch did not start")
		return FetchRequest{}
	}
}

// collector gathers results delivered to a ResultFunc.
type collector struct {
	mu      sync.Mutex
	results []Result
	ch      chan Result
}

func newCollector() *collector {
	return &collector{ch: make(chan Result, 64)}
}

func (c *collector) fn(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.ch <- r
}

func (c *collector) wait(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

var (
	assetA1  = assets.Ref{ID: "A1", URL: "file:///library/a1.jpg"}
	assetB2  = assets.Ref{ID: "B2", URL: "file:///library/b2.jpg"}
	size100  = assets.Size{Width: 100, Height: 100}
	fillMode = assets.AspectFill
)

func newTestManager(t *testing.T, p Provider) *Manager {
	t.Helper()
	m := New(p)
	t.Cleanup(m.Close)
	return m
}
