package indicator

import (
	"math"
	"strconv"

	"mag-systemv1/internal/model"
)

// StdDev calculates population standard deviation of closes over a
// rolling window. Same circular buffer layout as SMA, with a running
// sum of squares for O(1) updates.
type StdDev struct {
	period  int
	buf     []float64
	idx     int
	count   int
	sum     float64
	sumSq   float64
	current float64
}

// NewStdDev creates a new StdDev indicator with the given period.
func NewStdDev(period int) *StdDev {
	return &StdDev{
		period: period,
		buf:    make([]float64, period),
	}
}

func (d *StdDev) Name() string { return "STDDEV_" + strconv.Itoa(d.period) }

func (d *StdDev) Update(bar model.Bar) {
	price := bar.Close

	if d.count >= d.period {
		old := d.buf[d.idx]
		d.sum -= old
		d.sumSq -= old * old
	}

	d.buf[d.idx] = price
	d.sum += price
	d.sumSq += price * price
	d.idx = (d.idx + 1) % d.period
	d.count++

	if d.count >= d.period {
		n := float64(d.period)
		mean := d.sum / n
		variance := d.sumSq/n - mean*mean
		if variance < 0 {
			// Floating-point cancellation can push variance slightly negative
			variance = 0
		}
		d.current = math.Sqrt(variance)
	}
}

func (d *StdDev) Value() float64 { return d.current }
func (d *StdDev) Ready() bool    { return d.count >= d.period }

// Reset clears the StdDev state for reuse.
func (d *StdDev) Reset() {
	d.idx = 0
	d.count = 0
	d.sum = 0
	d.sumSq = 0
	d.current = 0
	for i := range d.buf {
		d.buf[i] = 0
	}
}

// Snapshot serializes the StdDev state for checkpoint persistence.
func (d *StdDev) Snapshot() StateSnapshot {
	bufCopy := make([]float64, len(d.buf))
	copy(bufCopy, d.buf)
	return StateSnapshot{
		Type:    "STDDEV",
		Period:  d.period,
		Buf:     bufCopy,
		Idx:     d.idx,
		Count:   d.count,
		Sum:     d.sum,
		SumSq:   d.sumSq,
		Current: d.current,
	}
}

// RestoreFromSnapshot restores StdDev state from a checkpoint.
func (d *StdDev) RestoreFromSnapshot(snap StateSnapshot) error {
	d.period = snap.Period
	d.idx = snap.Idx
	d.count = snap.Count
	d.sum = snap.Sum
	d.sumSq = snap.SumSq
	d.current = snap.Current
	if len(snap.Buf) > 0 {
		d.buf = make([]float64, len(snap.Buf))
		copy(d.buf, snap.Buf)
	} else {
		d.buf = make([]float64, snap.Period)
	}
	return nil
}
