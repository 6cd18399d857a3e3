package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "FETCH_WORKERS"

// Count returns the optimal number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
//
// Can be overridden with the FETCH_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU), such as
// reading an image from disk and scaling it.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Limiter bounds the number of concurrently running fetches.
type Limiter struct {
	sem   *semaphore.Weighted
	size  int
	inUse atomic.Int64
}

// NewLimiter returns a Limiter admitting n concurrent holders. n < 1 is
// treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inUse.Add(1)
	return nil
}

// Release frees a slot obtained from Acquire.
func (l *Limiter) Release() {
	l.inUse.Add(-1)
	l.sem.Release(1)
}

// InUse reports the number of held slots.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Size reports the capacity.
func (l *Limiter) Size() int {
	return l.size
}
