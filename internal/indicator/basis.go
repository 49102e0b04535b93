package indicator

import (
	"fmt"

	"mag-systemv1/internal/model"
)

// BasisConfig holds the periods and multiplier for one basis instance.
type BasisConfig struct {
	MidlinePeriod int     // SMA window for the midline
	VolPeriod     int     // StdDev window for the band half-width
	BandMult      float64 // band half-width in standard deviations
	OscFast       int     // fast EMA period of the oscillator
	OscSlow       int     // slow EMA period of the oscillator
	OscRef        int     // EMA period of the oscillator reference line
}

// Basis combines the midline, volatility bands and oscillator pair into
// the per-bar derived values the signal engine consumes. One Basis
// instance serves one symbol.
type Basis struct {
	cfg     BasisConfig
	midline *SMA
	vol     *StdDev
	osc     *Oscillator
}

// NewBasis creates a basis with the given configuration.
func NewBasis(cfg BasisConfig) *Basis {
	return &Basis{
		cfg:     cfg,
		midline: NewSMA(cfg.MidlinePeriod),
		vol:     NewStdDev(cfg.VolPeriod),
		osc:     NewOscillator(cfg.OscFast, cfg.OscSlow, cfg.OscRef),
	}
}

// Update feeds one bar into every component and returns the resulting
// snapshot. Snapshot.Ready stays false until all windows have filled.
func (b *Basis) Update(bar model.Bar) model.IndicatorSnapshot {
	b.midline.Update(bar)
	b.vol.Update(bar)
	b.osc.Update(bar)

	if !b.Ready() {
		return model.IndicatorSnapshot{}
	}

	mid := b.midline.Value()
	half := b.cfg.BandMult * b.vol.Value()
	return model.IndicatorSnapshot{
		Midline:   mid,
		UpperBand: mid + half,
		LowerBand: mid - half,
		Osc:       b.osc.Value(),
		OscRef:    b.osc.RefValue(),
		Ready:     true,
	}
}

// Ready reports whether every component window has filled.
func (b *Basis) Ready() bool {
	return b.midline.Ready() && b.vol.Ready() && b.osc.Ready()
}

// WarmupBars returns the number of bars needed before Ready can be true.
func (b *Basis) WarmupBars() int {
	warmup := b.cfg.OscSlow + b.cfg.OscRef - 1
	if b.cfg.MidlinePeriod > warmup {
		warmup = b.cfg.MidlinePeriod
	}
	if b.cfg.VolPeriod > warmup {
		warmup = b.cfg.VolPeriod
	}
	return warmup
}

// Reset clears all component state for reuse.
func (b *Basis) Reset() {
	b.midline.Reset()
	b.vol.Reset()
	b.osc.Reset()
}

// Snapshot serializes the full basis state for checkpoint persistence.
func (b *Basis) Snapshot() StateSnapshot {
	return StateSnapshot{
		Type: "BASIS",
		Sub: []StateSnapshot{
			b.midline.Snapshot(),
			b.vol.Snapshot(),
			b.osc.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores basis state from a checkpoint.
func (b *Basis) RestoreFromSnapshot(snap StateSnapshot) error {
	if len(snap.Sub) != 3 {
		return fmt.Errorf("basis snapshot: want 3 sub-states, got %d", len(snap.Sub))
	}
	if err := b.midline.RestoreFromSnapshot(snap.Sub[0]); err != nil {
		return err
	}
	if err := b.vol.RestoreFromSnapshot(snap.Sub[1]); err != nil {
		return err
	}
	return b.osc.RestoreFromSnapshot(snap.Sub[2])
}
