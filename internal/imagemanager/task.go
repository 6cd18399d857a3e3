package imagemanager

import (
	"context"
	"sync"
)

// Task is the shared future of one in-flight request. Every caller that
// coalesces onto the request gets the same Task.
type Task struct {
	id     RequestID
	done   chan struct{}
	once   sync.Once
	result Result
}

func newTask(id RequestID) *Task {
	return &Task{id: id, done: make(chan struct{})}
}

// ID returns the request id.
func (t *Task) ID() RequestID {
	return t.id
}

// Done is closed once the outcome is known.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the outcome is known or ctx is done. An expired ctx
// only stops this waiter; the fetch continues for everyone else.
func (t *Task) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-t.done:
		return t.result.Response, t.result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome and whether it is known yet.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}

// complete records r. Later calls are ignored.
func (t *Task) complete(r Result) {
	t.once.Do(func() {
		t.result = r
		close(t.done)
	})
}
