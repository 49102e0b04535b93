package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker keeps a sliding window of engine-to-client latency
// samples and reports p50/p95/p99. Safe for concurrent use.
type LatencyTracker struct {
	mu   sync.Mutex
	ring []float64 // latency samples in ms, newest overwrites oldest
	next int
	n    int
}

// NewLatencyTracker creates a tracker over the last `capacity` samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{ring: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.ring[lt.next] = ms
	lt.next = (lt.next + 1) % len(lt.ring)
	if lt.n < len(lt.ring) {
		lt.n++
	}
	lt.mu.Unlock()
}

// Count returns the number of samples held (up to capacity).
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.n
}

// Percentiles returns p50, p95 and p99 in milliseconds, or zeros when
// no samples have been recorded yet.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	window := lt.snapshot()
	if len(window) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(window)
	return quantile(window, 0.50), quantile(window, 0.95), quantile(window, 0.99)
}

// snapshot copies the current window so sorting happens off the lock.
func (lt *LatencyTracker) snapshot() []float64 {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.n == 0 {
		return nil
	}
	out := make([]float64, lt.n)
	if lt.n < len(lt.ring) {
		copy(out, lt.ring[:lt.n])
		return out
	}
	// Full ring: oldest sample sits at the write position.
	copied := copy(out, lt.ring[lt.next:])
	copy(out[copied:], lt.ring[:lt.next])
	return out
}

// quantile interpolates the q-th quantile (0..1) of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
