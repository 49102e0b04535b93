package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersAndCounts(t *testing.T) {
	m := NewMetrics()

	m.BarsTotal.Inc()
	if got := testutil.ToFloat64(m.BarsTotal); got != 1 {
		t.Errorf("BarsTotal = %v, want 1", got)
	}

	// Crash-recovery reclaims are reported in bulk per startup.
	m.PELMessagesReclaimed.Add(3)
	if got := testutil.ToFloat64(m.PELMessagesReclaimed); got != 3 {
		t.Errorf("PELMessagesReclaimed = %v, want 3", got)
	}

	m.EventsTotal.WithLabelValues("POSITION_CHANGED").Inc()
	if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("POSITION_CHANGED")); got != 1 {
		t.Errorf("EventsTotal[POSITION_CHANGED] = %v, want 1", got)
	}

	m.TrendState.WithLabelValues("BTCUSDT").Set(-1)
	if got := testutil.ToFloat64(m.TrendState.WithLabelValues("BTCUSDT")); got != -1 {
		t.Errorf("TrendState[BTCUSDT] = %v, want -1", got)
	}
}
