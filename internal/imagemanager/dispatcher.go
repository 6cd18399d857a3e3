package imagemanager

import (
	"sync"

	"media-fetcher/internal/logging"
	"media-fetcher/internal/metrics"
)

// Dispatcher runs callbacks one at a time, in submission order, on a single
// goroutine. Callbacks may call back into the Manager.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the delivery goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Submit queues fn. It reports false, dropping fn, once the dispatcher is
// closed.
func (d *Dispatcher) Submit(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	metrics.DispatcherQueueDepth.Inc()
	d.mu.Unlock()
	d.cond.Signal()
	return true
}

// Flush blocks until every callback submitted before it has run. It must
// not be called from a callback.
func (d *Dispatcher) Flush() {
	ch := make(chan struct{})
	if !d.Submit(func() { close(ch) }) {
		<-d.done
		return
	}
	<-ch
}

// Close runs the callbacks already queued, then stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range batch {
			metrics.DispatcherQueueDepth.Dec()
			run(fn)
		}
	}
}

func run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("callback panicked: %v", r)
		}
	}()
	fn()
}
