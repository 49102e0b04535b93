package engine

import "mag-systemv1/internal/model"

// TempModeGate suppresses structure/correction-driven position moves
// while a freshly formed trend coincides with unresolved dullness: the
// exhaustion has to resolve before those rules may move size again.
// Trend-breakout moves stay unaffected.
type TempModeGate struct {
	active bool
	bias   model.Trend
}

// NewTempModeGate starts disarmed.
func NewTempModeGate() *TempModeGate { return &TempModeGate{} }

// Active reports whether suppression is in effect.
func (g *TempModeGate) Active() bool { return g.active }

// Bias returns the trend that armed the gate, or "" when disarmed.
func (g *TempModeGate) Bias() model.Trend { return g.bias }

// Arm engages suppression with the trend that just formed.
func (g *TempModeGate) Arm(trend model.Trend) {
	g.active = true
	g.bias = trend
}

// Clear disarms the gate.
func (g *TempModeGate) Clear() {
	g.active = false
	g.bias = ""
}

type tempModeState struct {
	Active bool        `json:"active"`
	Bias   model.Trend `json:"bias"`
}

func (g *TempModeGate) snapshot() tempModeState {
	return tempModeState{Active: g.active, Bias: g.bias}
}

func (g *TempModeGate) restore(s tempModeState) {
	g.active = s.Active
	g.bias = s.Bias
}
