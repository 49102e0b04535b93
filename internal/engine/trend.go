package engine

import "mag-systemv1/internal/model"

// TrendClassifier maintains the sticky trend regime.
//
// Transition rule: close above the upper band → Up, close below the
// lower band → Down, otherwise hold. Neutral is the start state only;
// once a trend is established, just an opposite-band breach changes it.
//
// It also computes raw break flags against the *previous* bar's band
// values. Those are edge signals for labeling and never drive the
// sticky state.
type TrendClassifier struct {
	state model.Trend

	prevUpper float64
	prevLower float64
	havePrev  bool
}

// NewTrendClassifier starts in Neutral.
func NewTrendClassifier() *TrendClassifier {
	return &TrendClassifier{state: model.TrendNeutral}
}

// State returns the current trend.
func (c *TrendClassifier) State() model.Trend { return c.state }

// Step advances the classifier by one bar.
// changed reports a state transition; upBreak/downBreak are the raw
// crossings of last bar's band values by this bar's close.
func (c *TrendClassifier) Step(close float64, snap model.IndicatorSnapshot) (changed bool, from, to model.Trend, upBreak, downBreak bool) {
	if c.havePrev {
		upBreak = close > c.prevUpper
		downBreak = close < c.prevLower
	}
	c.prevUpper = snap.UpperBand
	c.prevLower = snap.LowerBand
	c.havePrev = true

	from = c.state
	switch {
	case close > snap.UpperBand:
		c.state = model.TrendUp
	case close < snap.LowerBand:
		c.state = model.TrendDown
	}
	to = c.state
	changed = from != to
	return
}

type trendState struct {
	State     model.Trend `json:"state"`
	PrevUpper float64     `json:"prev_upper"`
	PrevLower float64     `json:"prev_lower"`
	HavePrev  bool        `json:"have_prev"`
}

func (c *TrendClassifier) snapshot() trendState {
	return trendState{State: c.state, PrevUpper: c.prevUpper, PrevLower: c.prevLower, HavePrev: c.havePrev}
}

func (c *TrendClassifier) restore(s trendState) {
	c.state = s.State
	c.prevUpper = s.PrevUpper
	c.prevLower = s.PrevLower
	c.havePrev = s.HavePrev
}
