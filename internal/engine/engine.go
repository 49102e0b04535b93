// Package engine implements the bar-driven signal engine: trend
// classification, structure/correction detection and position target
// resolution for one symbol, processed strictly one bar at a time.
//
// The Engine owns all per-symbol state; nothing is shared between
// instances, so multi-symbol deployments run one Engine per symbol
// (see Book). Processing a bar is atomic: either every component
// advances or the bar is rejected with engine state untouched.
package engine

import (
	"time"

	"mag-systemv1/internal/indicator"
	"mag-systemv1/internal/model"
)

// Engine runs the full per-bar pipeline for a single symbol:
// indicator basis → trend classifier → structure detectors →
// correction detectors → temp-mode gate → position resolver.
type Engine struct {
	symbol string
	cfg    Config

	basis    *indicator.Basis
	trend    *TrendClassifier
	bottomS  *StructureDetector
	topS     *StructureDetector
	bottomC  *CorrectionDetector
	topC     *CorrectionDetector
	gate     *TempModeGate
	resolver *PositionResolver

	snap    model.IndicatorSnapshot
	lastTS  time.Time
	hasLast bool
	bars    int
}

// New validates cfg and creates an engine for one symbol.
// Returns a *ConfigError before any bar can be processed.
func New(symbol string, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		symbol: symbol,
		cfg:    cfg,
		basis: indicator.NewBasis(indicator.BasisConfig{
			MidlinePeriod: cfg.MidlineLength,
			VolPeriod:     cfg.VolatilityLength,
			BandMult:      cfg.VolatilityMult,
			OscFast:       cfg.OscFast,
			OscSlow:       cfg.OscSlow,
			OscRef:        cfg.OscRef,
		}),
		trend:    NewTrendClassifier(),
		bottomS:  NewStructureDetector(model.SideBottom, cfg.StructureLookback),
		topS:     NewStructureDetector(model.SideTop, cfg.StructureLookback),
		bottomC:  NewCorrectionDetector(model.SideBottom),
		topC:     NewCorrectionDetector(model.SideTop),
		gate:     NewTempModeGate(),
		resolver: NewPositionResolver(cfg.Tiers),
	}, nil
}

// Symbol returns the symbol this engine serves.
func (e *Engine) Symbol() string { return e.symbol }

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.cfg }

// Snapshot returns the derived indicator values of the last bar.
func (e *Engine) Snapshot() model.IndicatorSnapshot { return e.snap }

// Trend returns the current trend regime.
func (e *Engine) Trend() model.Trend { return e.trend.State() }

// Position returns the current target position percentage.
func (e *Engine) Position() float64 { return e.resolver.Target() }

// LastReason returns the reason tag of the last position change.
func (e *Engine) LastReason() string { return e.resolver.LastReason() }

// LastTS returns the timestamp of the last accepted bar.
func (e *Engine) LastTS() time.Time { return e.lastTS }

// Bars returns how many bars have been accepted.
func (e *Engine) Bars() int { return e.bars }

// Ingest processes one bar and returns the ordered events it produced.
// The bar's timestamp must be strictly after the previous bar's; a
// violation returns *OutOfOrderError with no state touched. Bars
// arriving before the indicator windows fill advance the basis only
// and produce no events.
func (e *Engine) Ingest(bar model.Bar) ([]model.Event, error) {
	if e.hasLast && !bar.TS.After(e.lastTS) {
		return nil, &OutOfOrderError{Symbol: e.symbol, Got: bar.TS, Last: e.lastTS}
	}

	e.snap = e.basis.Update(bar)
	e.lastTS = bar.TS
	e.hasLast = true
	e.bars++

	if !e.snap.Ready {
		return nil, nil
	}

	var events []model.Event

	trendChanged, from, to, _, _ := e.trend.Step(bar.Close, e.snap)
	if trendChanged {
		events = append(events, model.Event{
			Type: model.EventTrendChanged, Symbol: e.symbol, TS: bar.TS,
			From: from, To: to,
		})
	}

	bottomConfirmed, bottomRef := e.bottomS.Step(bar, e.snap.Osc)
	topConfirmed, topRef := e.topS.Step(bar, e.snap.Osc)
	if bottomConfirmed {
		e.bottomC.SetReference(bottomRef)
		events = append(events, model.Event{
			Type: model.EventStructureConfirmed, Symbol: e.symbol, TS: bar.TS,
			Side: model.SideBottom,
		})
	}
	if topConfirmed {
		e.topC.SetReference(topRef)
		events = append(events, model.Event{
			Type: model.EventStructureConfirmed, Symbol: e.symbol, TS: bar.TS,
			Side: model.SideTop,
		})
	}

	bottomFired := e.bottomC.Step(e.snap.Osc)
	topFired := e.topC.Step(e.snap.Osc)
	if bottomFired {
		events = append(events, model.Event{
			Type: model.EventCorrectionFired, Symbol: e.symbol, TS: bar.TS,
			Side: model.SideBottom,
		})
	}
	if topFired {
		events = append(events, model.Event{
			Type: model.EventCorrectionFired, Symbol: e.symbol, TS: bar.TS,
			Side: model.SideTop,
		})
	}

	// Gate arms when a trend change lands on a bar where dullness is
	// pending on either side. A confirmation this bar means dullness
	// was still pending when the bar opened, so it counts too.
	bottomDull := e.bottomS.DullnessActive() || bottomConfirmed
	topDull := e.topS.DullnessActive() || topConfirmed
	if trendChanged && (bottomDull || topDull) {
		e.gate.Arm(to)
	}

	changed, old, next, reason := e.resolver.resolve(resolveInput{
		trendChanged:     trendChanged,
		trendTo:          to,
		trend:            e.trend.State(),
		topConfirmed:     topConfirmed,
		bottomConfirmed:  bottomConfirmed,
		topCorrection:    topFired,
		bottomCorrection: bottomFired,
		gateActive:       e.gate.Active(),
	})
	if changed {
		events = append(events, model.Event{
			Type: model.EventPositionChanged, Symbol: e.symbol, TS: bar.TS,
			OldTarget: old, NewTarget: next, Reason: reason,
		})
	}

	// The gate clears after resolution, so a structure or correction
	// landing while suppressed still ends the suppression window.
	if bottomConfirmed || topConfirmed || bottomFired || topFired {
		e.gate.Clear()
	}

	return events, nil
}
