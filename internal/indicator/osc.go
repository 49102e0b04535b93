package indicator

import (
	"fmt"

	"mag-systemv1/internal/model"
)

// Oscillator computes a fast/slow momentum pair from closes:
// the fast line is the spread of two EMAs, the slow line is an EMA of
// the fast line. The slow line only starts accumulating once both
// underlying EMAs are seeded, so warm-up is slowPeriod+refPeriod-1 bars.
type Oscillator struct {
	fast *EMA
	slow *EMA
	ref  *EMA // EMA over the fast line

	current float64 // latest fast-line value
}

// NewOscillator creates an oscillator with the given EMA periods.
func NewOscillator(fastPeriod, slowPeriod, refPeriod int) *Oscillator {
	return &Oscillator{
		fast: NewEMA(fastPeriod),
		slow: NewEMA(slowPeriod),
		ref:  NewEMA(refPeriod),
	}
}

func (o *Oscillator) Name() string {
	return fmt.Sprintf("OSC_%d_%d_%d", o.fast.period, o.slow.period, o.ref.period)
}

func (o *Oscillator) Update(bar model.Bar) {
	o.fast.Update(bar)
	o.slow.Update(bar)
	if !o.fast.Ready() || !o.slow.Ready() {
		return
	}
	o.current = o.fast.Value() - o.slow.Value()
	o.ref.Feed(o.current)
}

// Value returns the fast line.
func (o *Oscillator) Value() float64 { return o.current }

// RefValue returns the slow (reference) line.
func (o *Oscillator) RefValue() float64 { return o.ref.Value() }

func (o *Oscillator) Ready() bool {
	return o.fast.Ready() && o.slow.Ready() && o.ref.Ready()
}

// Reset clears all oscillator state for reuse.
func (o *Oscillator) Reset() {
	o.fast.Reset()
	o.slow.Reset()
	o.ref.Reset()
	o.current = 0
}

// Snapshot serializes the oscillator state for checkpoint persistence.
func (o *Oscillator) Snapshot() StateSnapshot {
	return StateSnapshot{
		Type:    "OSC",
		Current: o.current,
		Sub: []StateSnapshot{
			o.fast.Snapshot(),
			o.slow.Snapshot(),
			o.ref.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores oscillator state from a checkpoint.
func (o *Oscillator) RestoreFromSnapshot(snap StateSnapshot) error {
	if len(snap.Sub) != 3 {
		return fmt.Errorf("oscillator snapshot: want 3 sub-states, got %d", len(snap.Sub))
	}
	if err := o.fast.RestoreFromSnapshot(snap.Sub[0]); err != nil {
		return err
	}
	if err := o.slow.RestoreFromSnapshot(snap.Sub[1]); err != nil {
		return err
	}
	if err := o.ref.RestoreFromSnapshot(snap.Sub[2]); err != nil {
		return err
	}
	o.current = snap.Current
	return nil
}
