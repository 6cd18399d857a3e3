// Package memory configures the Go soft memory limit and applies
// backpressure to image fetches when the heap nears it.
//
// Decoding full-resolution photos is the dominant allocation in this
// service. Without a GOMEMLIMIT matched to the container, a burst of large
// requests can get the pod OOM-killed before the collector reacts.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main:
//
//	res := memory.ConfigureFromEnv()
//
// GOMEMLIMIT wins when set. Otherwise MEMORY_LIMIT (bytes or a quantity
// such as "2Gi") is multiplied by MEMORY_RATIO, default 0.75, and applied
// with debug.SetMemoryLimit.
//
// # Backpressure
//
// A [Monitor] samples the heap on an interval. Above CriticalWaterMark it
// pauses: providers calling [Monitor.WaitIfPaused] before decoding block
// until usage drops below HighWaterMark, their context ends, or the
// monitor stops.
package memory
