package engine

import "mag-systemv1/internal/model"

// resolveInput collects everything the resolver looks at for one bar.
type resolveInput struct {
	trendChanged bool
	trendTo      model.Trend
	trend        model.Trend // trend after this bar's classification

	topConfirmed    bool
	bottomConfirmed bool
	topCorrection   bool
	bottomCorrection bool

	gateActive bool
}

// PositionResolver reduces the bar's classifier/detector/gate outputs
// and the previous target into a new target percentage.
//
// Strict precedence, first match wins:
//  1. trend breaks Up            → full tier
//  2. trend breaks Down          → 0
//  3. gate active                → hold
//  4. top structure in uptrend   → partial de-risk
//  5. bottom structure in downtrend → partial re-entry
//  6. top correction in uptrend  → full tier restored
//  7. bottom correction in downtrend → 0
//  8. otherwise                  → hold
type PositionResolver struct {
	tiers  TierConfig
	target float64
	reason string
}

// NewPositionResolver starts flat.
func NewPositionResolver(tiers TierConfig) *PositionResolver {
	return &PositionResolver{tiers: tiers}
}

// Target returns the current target percentage.
func (p *PositionResolver) Target() float64 { return p.target }

// LastReason returns the reason tag of the most recent change.
func (p *PositionResolver) LastReason() string { return p.reason }

func (p *PositionResolver) resolve(in resolveInput) (changed bool, old, next float64, reason string) {
	old = p.target
	next = old

	switch {
	case in.trendChanged && in.trendTo == model.TrendUp:
		next, reason = p.tiers.Full, model.ReasonTrendUp
	case in.trendChanged && in.trendTo == model.TrendDown:
		next, reason = 0, model.ReasonTrendDown
	case in.gateActive:
		// hold: suppression window
	case in.topConfirmed && in.trend == model.TrendUp:
		next, reason = p.tiers.TopStructPct*p.tiers.Full, model.ReasonTopStruct
	case in.bottomConfirmed && in.trend == model.TrendDown:
		next, reason = p.tiers.BottomReentry, model.ReasonBottomStruct
	case in.topCorrection && in.trend == model.TrendUp:
		next, reason = p.tiers.Full, model.ReasonTopCorrection
	case in.bottomCorrection && in.trend == model.TrendDown:
		next, reason = 0, model.ReasonBottomCorrection
	}

	next = p.tiers.Clamp(next)
	if next == old {
		return false, old, next, ""
	}
	p.target = next
	p.reason = reason
	return true, old, next, reason
}

type positionState struct {
	Target float64 `json:"target"`
	Reason string  `json:"reason"`
}

func (p *PositionResolver) snapshot() positionState {
	return positionState{Target: p.target, Reason: p.reason}
}

func (p *PositionResolver) restore(s positionState) {
	p.target = s.Target
	p.reason = s.Reason
}
