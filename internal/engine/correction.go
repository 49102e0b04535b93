package engine

import "mag-systemv1/internal/model"

// CorrectionDetector watches for invalidation of a confirmed structure:
// the oscillator crossing back through the reference level captured at
// confirmation time. Fires on the bar the condition becomes true, not
// on every bar it holds, so downstream position moves happen once.
//
// A new structure confirmation on the same side replaces the reference
// and re-arms the edge.
type CorrectionDetector struct {
	side model.Side
	sign float64

	ref    float64
	hasRef bool
	held   bool // condition held on the previous bar
}

// NewCorrectionDetector creates the detector for one side.
func NewCorrectionDetector(side model.Side) *CorrectionDetector {
	sign := 1.0
	if side == model.SideBottom {
		sign = -1.0
	}
	return &CorrectionDetector{side: side, sign: sign}
}

// Side returns which side this detector watches.
func (c *CorrectionDetector) Side() model.Side { return c.side }

// HasReference reports whether a structure has armed this detector.
func (c *CorrectionDetector) HasReference() bool { return c.hasRef }

// SetReference arms the detector with a fresh pivot level, replacing
// any unresolved prior reference.
func (c *CorrectionDetector) SetReference(level float64) {
	c.ref = level
	c.hasRef = true
	c.held = false
}

// Step advances the detector by one bar; fired reports the edge.
func (c *CorrectionDetector) Step(oscNow float64) (fired bool) {
	if !c.hasRef {
		return false
	}
	// Bottom: oscillator back below the reference. Top: back above.
	cond := c.sign*(oscNow-c.ref) > 0
	fired = cond && !c.held
	c.held = cond
	return fired
}

type correctionState struct {
	Ref    float64 `json:"ref"`
	HasRef bool    `json:"has_ref"`
	Held   bool    `json:"held"`
}

func (c *CorrectionDetector) snapshot() correctionState {
	return correctionState{Ref: c.ref, HasRef: c.hasRef, Held: c.held}
}

func (c *CorrectionDetector) restore(s correctionState) {
	c.ref = s.Ref
	c.hasRef = s.HasRef
	c.held = s.Held
}
