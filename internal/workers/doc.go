/*
Package workers sizes worker pools for containerized environments and
bounds concurrent fetches.

runtime.NumCPU reports the host's CPUs, not the container's quota. Since
Go 1.19 GOMAXPROCS follows the cgroup CPU limit, so the helpers here derive
pool sizes from it:

	n := workers.ForMixed(8)   // decode + scale, 1.5 per CPU
	n := workers.ForIO(16)     // remote downloads, 2 per CPU

Operators can pin the count with FETCH_WORKERS; the value is still capped
by the limit argument.

A Limiter wraps a weighted semaphore and tracks how many slots are held so
the provider can export a busy-workers gauge:

	lim := workers.NewLimiter(workers.ForMixed(8))
	if err := lim.Acquire(ctx); err != nil {
	    return err
	}
	defer lim.Release()
*/
package workers
