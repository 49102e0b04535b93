package gateway

import (
	"math"
	"testing"
)

func within(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %f, want ~%f", name, got, want)
	}
}

func TestLatencyTracker_NoSamples(t *testing.T) {
	lt := NewLatencyTracker(64)
	if p50, p95, p99 := lt.Percentiles(); p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("expected zero percentiles on empty tracker, got (%f, %f, %f)", p50, p95, p99)
	}
	if lt.Count() != 0 {
		t.Errorf("Count() = %d, want 0", lt.Count())
	}
}

func TestLatencyTracker_SingleSample(t *testing.T) {
	lt := NewLatencyTracker(64)
	lt.Record(42.5)
	p50, p95, p99 := lt.Percentiles()
	if p50 != 42.5 || p95 != 42.5 || p99 != 42.5 {
		t.Errorf("one sample should pin every percentile to 42.5, got (%f, %f, %f)", p50, p95, p99)
	}
}

func TestLatencyTracker_UniformRamp(t *testing.T) {
	lt := NewLatencyTracker(10000)
	for ms := 1; ms <= 100; ms++ {
		lt.Record(float64(ms))
	}
	p50, p95, p99 := lt.Percentiles()
	within(t, "p50", p50, 50.5, 1.0)
	within(t, "p95", p95, 95.05, 1.0)
	within(t, "p99", p99, 99.01, 1.0)
}

func TestLatencyTracker_EvictsOldestOnWrap(t *testing.T) {
	lt := NewLatencyTracker(10)
	for ms := 1; ms <= 20; ms++ {
		lt.Record(float64(ms))
	}
	if lt.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", lt.Count())
	}
	// The window now holds 11..20, so the median is 15.5.
	p50, _, _ := lt.Percentiles()
	within(t, "p50", p50, 15.5, 1.0)
}

func TestLatencyTracker_CountCapsAtCapacity(t *testing.T) {
	lt := NewLatencyTracker(8)
	for i := 0; i < 5; i++ {
		lt.Record(1.0)
	}
	if lt.Count() != 5 {
		t.Errorf("Count() = %d, want 5", lt.Count())
	}
	for i := 0; i < 10; i++ {
		lt.Record(2.0)
	}
	if lt.Count() != 8 {
		t.Errorf("Count() = %d, want 8 after overflow", lt.Count())
	}
}
