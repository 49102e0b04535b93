package engine

import "mag-systemv1/internal/model"

// StructureDetector finds the two-stage exhaustion pattern on one side
// of the market: "dullness" (price makes a new extreme while the
// oscillator fails to follow, confirmed by two consecutive
// same-direction bars), then "structure confirmation" (the oscillator
// turns back while dullness is still pending).
//
// Both sides share this one implementation through a sign parameter:
// +1 detects tops (new highs), -1 detects bottoms (new lows). Every
// comparison is done on sign-adjusted values so the top and bottom
// variants cannot drift apart.
type StructureDetector struct {
	side model.Side
	sign float64
	look int

	// Ring buffers over the trailing lookback window, excluding the
	// current bar. Values are stored sign-adjusted.
	ext   []float64 // sign*high (top) or sign*low (bottom)
	osc   []float64 // sign*oscillator
	idx   int
	count int

	// Last two bars, for momentum and reversal checks.
	prevClose, prevClose2 float64
	prevOsc, prevOsc2     float64
	seen                  int

	dullness bool
}

// NewStructureDetector creates the detector for one side with the given
// lookback window length.
func NewStructureDetector(side model.Side, lookback int) *StructureDetector {
	sign := 1.0
	if side == model.SideBottom {
		sign = -1.0
	}
	return &StructureDetector{
		side: side,
		sign: sign,
		look: lookback,
		ext:  make([]float64, lookback),
		osc:  make([]float64, lookback),
	}
}

// Side returns which side this detector watches.
func (d *StructureDetector) Side() model.Side { return d.side }

// DullnessActive reports whether a dullness condition is pending
// resolution.
func (d *StructureDetector) DullnessActive() bool { return d.dullness }

// Step advances the detector by one bar. confirmed reports a structure
// confirmation; refOsc is then the oscillator value one bar before the
// confirming bar — the level the market pivoted away from, handed to
// the correction detector.
func (d *StructureDetector) Step(bar model.Bar, oscNow float64) (confirmed bool, refOsc float64) {
	extreme := bar.Low
	if d.side == model.SideTop {
		extreme = bar.High
	}
	extAdj := d.sign * extreme
	oscAdj := d.sign * oscNow

	// Window extremes over the trailing lookback, current bar excluded.
	windowFull := d.count >= d.look
	var maxExt, maxOsc float64
	if windowFull {
		maxExt, maxOsc = d.ext[0], d.osc[0]
		for i := 1; i < d.look; i++ {
			if d.ext[i] > maxExt {
				maxExt = d.ext[i]
			}
			if d.osc[i] > maxOsc {
				maxOsc = d.osc[i]
			}
		}
	}

	if windowFull && d.seen >= 2 {
		newExtreme := extAdj > maxExt
		oscLagging := oscAdj < maxOsc
		momentumNow := d.sign*(bar.Close-d.prevClose) > 0 && d.sign*(oscNow-d.prevOsc) > 0
		momentumPrev := d.sign*(d.prevClose-d.prevClose2) > 0 && d.sign*(d.prevOsc-d.prevOsc2) > 0
		if newExtreme && oscLagging && momentumNow && momentumPrev {
			d.dullness = true
		}
	}

	// Confirmation: the oscillator reverses for exactly one bar while
	// dullness is pending. The reversal direction is opposite to the
	// dullness momentum, so both can never hold on the same bar.
	if d.dullness && d.seen >= 2 {
		reversed := d.sign*(oscNow-d.prevOsc) < 0
		wasFlat := d.sign*(d.prevOsc-d.prevOsc2) >= 0
		if reversed && wasFlat {
			confirmed = true
			refOsc = d.prevOsc
			d.dullness = false
		}
	}

	// Push current bar into the window and shift the prev trackers.
	d.ext[d.idx] = extAdj
	d.osc[d.idx] = oscAdj
	d.idx = (d.idx + 1) % d.look
	d.count++

	d.prevClose2 = d.prevClose
	d.prevOsc2 = d.prevOsc
	d.prevClose = bar.Close
	d.prevOsc = oscNow
	d.seen++

	return confirmed, refOsc
}

type structureState struct {
	Ext        []float64 `json:"ext"`
	Osc        []float64 `json:"osc"`
	Idx        int       `json:"idx"`
	Count      int       `json:"count"`
	PrevClose  float64   `json:"prev_close"`
	PrevClose2 float64   `json:"prev_close2"`
	PrevOsc    float64   `json:"prev_osc"`
	PrevOsc2   float64   `json:"prev_osc2"`
	Seen       int       `json:"seen"`
	Dullness   bool      `json:"dullness"`
}

func (d *StructureDetector) snapshot() structureState {
	ext := make([]float64, len(d.ext))
	osc := make([]float64, len(d.osc))
	copy(ext, d.ext)
	copy(osc, d.osc)
	return structureState{
		Ext: ext, Osc: osc, Idx: d.idx, Count: d.count,
		PrevClose: d.prevClose, PrevClose2: d.prevClose2,
		PrevOsc: d.prevOsc, PrevOsc2: d.prevOsc2,
		Seen: d.seen, Dullness: d.dullness,
	}
}

func (d *StructureDetector) restore(s structureState) {
	if len(s.Ext) == d.look {
		copy(d.ext, s.Ext)
		copy(d.osc, s.Osc)
	}
	d.idx = s.Idx
	d.count = s.Count
	d.prevClose = s.PrevClose
	d.prevClose2 = s.PrevClose2
	d.prevOsc = s.PrevOsc
	d.prevOsc2 = s.PrevOsc2
	d.seen = s.Seen
	d.dullness = s.Dullness
}
