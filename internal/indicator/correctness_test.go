package indicator

import (
	"math"
	"testing"
	"time"

	"mag-systemv1/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func bar(close float64) model.Bar {
	return model.Bar{
		Symbol: "TEST", TS: time.Unix(0, 0),
		Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
	}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Hand-calculated SMA(3) for a known price series:
	// Prices: 100, 102, 104, 103, 105
	// SMA after bar 3: (100+102+104)/3 = 102.0000
	// SMA after bar 4: (102+104+103)/3 = 103.0000
	// SMA after bar 5: (104+103+105)/3 = 104.0000

	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(bar(p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Correctness_Period5(t *testing.T) {
	// Prices: 10, 11, 12, 13, 14, 15, 16
	// SMA(5) after bar 5: (10+11+12+13+14)/5 = 12.0
	// SMA(5) after bar 6: (11+12+13+14+15)/5 = 13.0
	// SMA(5) after bar 7: (12+13+14+15+16)/5 = 14.0

	sma := NewSMA(5)
	prices := []float64{10, 11, 12, 13, 14, 15, 16}
	expected := []float64{0, 0, 0, 0, 12.0, 13.0, 14.0}
	ready := []bool{false, false, false, false, true, true, true}

	for i, p := range prices {
		sma.Update(bar(p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(5)", sma.Value(), expected[i], 0.0001)
		}
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Bar 1: sum=100
	// Bar 2: sum=202
	// Bar 3: sum=306 → initial EMA = 306/3 = 102.0 (SMA seed)
	// Bar 4: EMA = 103*0.5 + 102.0*0.5 = 102.5
	// Bar 5: EMA = 105*0.5 + 102.5*0.5 = 103.75

	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(bar(p))
		if ema.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

func TestEMA_Correctness_Period5(t *testing.T) {
	// EMA(5): multiplier = 2/(5+1) = 1/3
	// Prices: 44, 44.25, 44.50, 43.75, 44.50 → SMA seed = 44.20
	// Bar 6 (44.25): EMA = 44.25*(1/3) + 44.20*(2/3) = 44.2167
	// Bar 7 (44.00): EMA = 44.00*(1/3) + 44.2167*(2/3) = 44.1444

	mult := 2.0 / 6.0
	prices := []float64{44.00, 44.25, 44.50, 43.75, 44.50, 44.25, 44.00}
	seedExpected := (44.00 + 44.25 + 44.50 + 43.75 + 44.50) / 5.0

	ema := NewEMA(5)
	for _, p := range prices[:5] {
		ema.Update(bar(p))
	}
	assertClose(t, "EMA(5) seed", ema.Value(), seedExpected, 0.01)

	ema.Update(bar(prices[5]))
	expected6 := 44.25*mult + seedExpected*(1-mult)
	assertClose(t, "EMA(5) bar 6", ema.Value(), expected6, 0.01)

	ema.Update(bar(prices[6]))
	expected7 := 44.00*mult + expected6*(1-mult)
	assertClose(t, "EMA(5) bar 7", ema.Value(), expected7, 0.01)
}

// ────────────────────────────────────────────────────────────
// StdDev Correctness
// ────────────────────────────────────────────────────────────

func TestStdDev_Correctness_Period3(t *testing.T) {
	// Population stddev over a 3-bar window.
	// Prices: 100, 102, 104, 103, 105
	// Window (100,102,104): mean=102, var=(4+0+4)/3 → sd=sqrt(8/3)=1.632993
	// Window (102,104,103): mean=103, var=(1+1+0)/3 → sd=sqrt(2/3)=0.816497
	// Window (104,103,105): mean=104, var=(0+1+1)/3 → sd=sqrt(2/3)=0.816497

	sd := NewStdDev(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 1.632993, 0.816497, 0.816497}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sd.Update(bar(p))
		if sd.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sd.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "StdDev(3)", sd.Value(), expected[i], 0.0001)
		}
	}
}

func TestStdDev_Flat_IsZero(t *testing.T) {
	sd := NewStdDev(5)
	for i := 0; i < 20; i++ {
		sd.Update(bar(100))
	}
	assertClose(t, "StdDev flat", sd.Value(), 0.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Oscillator Correctness
// ────────────────────────────────────────────────────────────

func TestOscillator_Correctness(t *testing.T) {
	// Oscillator(2, 3, 2) over prices 100, 102, 104, 103, 105, 106.
	//
	// EMA(2), mult 2/3: seed (100+102)/2=101
	//   bar 3: 104*2/3 + 101/3      = 103.00000
	//   bar 4: 103*2/3 + 103/3      = 103.00000
	//   bar 5: 105*2/3 + 103/3      = 104.33333
	//   bar 6: 106*2/3 + 104.3333/3 = 105.44444
	// EMA(3), mult 1/2: seed (100+102+104)/3=102
	//   bar 4: 102.5, bar 5: 103.75, bar 6: 104.875
	// Fast line (from bar 3): 1.0, 0.5, 0.58333, 0.56944
	// Ref EMA(2) over fast line: seed (1.0+0.5)/2=0.75 at bar 4
	//   bar 5: 0.58333*2/3 + 0.75/3    = 0.63889
	//   bar 6: 0.56944*2/3 + 0.63889/3 = 0.59259

	osc := NewOscillator(2, 3, 2)
	prices := []float64{100, 102, 104, 103, 105, 106}

	for i, p := range prices {
		osc.Update(bar(p))
		wantReady := i >= 3
		if osc.Ready() != wantReady {
			t.Errorf("bar %d: Ready()=%v, want %v", i, osc.Ready(), wantReady)
		}
	}

	assertClose(t, "Osc fast line", osc.Value(), 0.56944, 0.0001)
	assertClose(t, "Osc ref line", osc.RefValue(), 0.59259, 0.0001)
}

func TestOscillator_Uptrend_Positive(t *testing.T) {
	// With steadily rising prices the fast EMA sits above the slow EMA,
	// so the fast line must end up positive.
	osc := NewOscillator(5, 10, 4)
	for i := 0; i < 40; i++ {
		osc.Update(bar(100 + float64(i)))
	}
	if !osc.Ready() {
		t.Fatal("oscillator not ready after 40 bars")
	}
	if osc.Value() <= 0 {
		t.Errorf("uptrend fast line should be positive, got %.4f", osc.Value())
	}
}

func TestOscillator_Downtrend_Negative(t *testing.T) {
	osc := NewOscillator(5, 10, 4)
	for i := 0; i < 40; i++ {
		osc.Update(bar(200 - float64(i)))
	}
	if osc.Value() >= 0 {
		t.Errorf("downtrend fast line should be negative, got %.4f", osc.Value())
	}
}

// ────────────────────────────────────────────────────────────
// Basis Correctness
// ────────────────────────────────────────────────────────────

func TestBasis_WarmupGating(t *testing.T) {
	b := NewBasis(BasisConfig{MidlinePeriod: 3, VolPeriod: 3, BandMult: 2, OscFast: 2, OscSlow: 3, OscRef: 2})
	if got := b.WarmupBars(); got != 4 {
		t.Fatalf("WarmupBars() = %d, want 4", got)
	}

	prices := []float64{100, 102, 104, 103, 105}
	for i, p := range prices {
		snap := b.Update(bar(p))
		wantReady := i >= 3
		if snap.Ready != wantReady {
			t.Errorf("bar %d: snap.Ready=%v, want %v", i, snap.Ready, wantReady)
		}
		if !wantReady && (snap.Midline != 0 || snap.Osc != 0) {
			t.Errorf("bar %d: not-ready snapshot should be zero, got %+v", i, snap)
		}
	}
}

func TestBasis_Correctness(t *testing.T) {
	// Basis(midline=3, mult=2, osc=2/3/2) over 100, 102, 104, 103.
	// Midline: (102+104+103)/3 = 103
	// StdDev of (102,104,103): sqrt(2/3) = 0.816497
	// Upper: 103 + 2*0.816497 = 104.632993
	// Lower: 103 - 2*0.816497 = 101.367007
	// Fast line 0.5, ref line 0.75 (see TestOscillator_Correctness)

	b := NewBasis(BasisConfig{MidlinePeriod: 3, VolPeriod: 3, BandMult: 2, OscFast: 2, OscSlow: 3, OscRef: 2})
	var snap model.IndicatorSnapshot
	for _, p := range []float64{100, 102, 104, 103} {
		snap = b.Update(bar(p))
	}

	if !snap.Ready {
		t.Fatal("basis should be ready after 4 bars")
	}
	assertClose(t, "Midline", snap.Midline, 103.0, 0.0001)
	assertClose(t, "UpperBand", snap.UpperBand, 104.632993, 0.0001)
	assertClose(t, "LowerBand", snap.LowerBand, 101.367007, 0.0001)
	assertClose(t, "Osc", snap.Osc, 0.5, 0.0001)
	assertClose(t, "OscRef", snap.OscRef, 0.75, 0.0001)
}

// ────────────────────────────────────────────────────────────
// EMA responsiveness vs SMA
// ────────────────────────────────────────────────────────────

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	sma := NewSMA(10)
	ema := NewEMA(10)

	// Feed 20 bars at flat 100
	for i := 0; i < 20; i++ {
		b := bar(100)
		sma.Update(b)
		ema.Update(b)
	}

	// Sudden jump to 120
	b := bar(120)
	sma.Update(b)
	ema.Update(b)

	// EMA should react more (closer to 120) than SMA
	if ema.Value() <= sma.Value() {
		t.Errorf("EMA should react more than SMA to sudden price jump: EMA=%.4f, SMA=%.4f", ema.Value(), sma.Value())
	}
}

// ────────────────────────────────────────────────────────────
// Snapshot round-trip correctness
// ────────────────────────────────────────────────────────────

func TestSMA_SnapshotRoundTrip(t *testing.T) {
	sma := NewSMA(5)
	for _, p := range []float64{100, 102, 104, 103, 105, 101} {
		sma.Update(bar(p))
	}
	snap := sma.Snapshot()

	sma2 := NewSMA(5)
	if err := sma2.RestoreFromSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	assertClose(t, "SMA snapshot round-trip", sma2.Value(), sma.Value(), 0.0001)

	// Feed one more bar to both — they should stay in sync
	sma.Update(bar(107))
	sma2.Update(bar(107))
	assertClose(t, "SMA after restoration + update", sma2.Value(), sma.Value(), 0.0001)
}

func TestEMA_SnapshotRoundTrip(t *testing.T) {
	ema := NewEMA(5)
	for _, p := range []float64{100, 102, 104, 103, 105, 101} {
		ema.Update(bar(p))
	}
	snap := ema.Snapshot()

	ema2 := NewEMA(5)
	if err := ema2.RestoreFromSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	assertClose(t, "EMA snapshot round-trip", ema2.Value(), ema.Value(), 0.0001)

	ema.Update(bar(107))
	ema2.Update(bar(107))
	assertClose(t, "EMA after restoration + update", ema2.Value(), ema.Value(), 0.0001)
}

func TestStdDev_SnapshotRoundTrip(t *testing.T) {
	sd := NewStdDev(5)
	for _, p := range []float64{100, 102, 104, 103, 105, 101} {
		sd.Update(bar(p))
	}
	snap := sd.Snapshot()

	sd2 := NewStdDev(5)
	if err := sd2.RestoreFromSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	assertClose(t, "StdDev snapshot round-trip", sd2.Value(), sd.Value(), 0.0001)

	sd.Update(bar(107))
	sd2.Update(bar(107))
	assertClose(t, "StdDev after restoration + update", sd2.Value(), sd.Value(), 0.0001)
}

func TestBasis_SnapshotRoundTrip(t *testing.T) {
	cfg := BasisConfig{MidlinePeriod: 5, VolPeriod: 5, BandMult: 2, OscFast: 3, OscSlow: 6, OscRef: 3}
	b := NewBasis(cfg)
	for i := 0; i < 20; i++ {
		b.Update(bar(100 + float64(i%7)))
	}
	snap := b.Snapshot()

	b2 := NewBasis(cfg)
	if err := b2.RestoreFromSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	// Feed the same tail to both — derived values must stay in sync
	for _, p := range []float64{104, 99, 108, 103} {
		s1 := b.Update(bar(p))
		s2 := b2.Update(bar(p))
		assertClose(t, "Basis midline", s2.Midline, s1.Midline, 1e-9)
		assertClose(t, "Basis upper", s2.UpperBand, s1.UpperBand, 1e-9)
		assertClose(t, "Basis osc", s2.Osc, s1.Osc, 1e-9)
		assertClose(t, "Basis osc ref", s2.OscRef, s1.OscRef, 1e-9)
	}
}
