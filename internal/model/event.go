package model

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of engine event.
type EventType string

const (
	EventTrendChanged       EventType = "TREND_CHANGED"
	EventStructureConfirmed EventType = "STRUCTURE_CONFIRMED"
	EventCorrectionFired    EventType = "CORRECTION_FIRED"
	EventPositionChanged    EventType = "POSITION_CHANGED"
)

// Side distinguishes the bottom/top variants of the structure and
// correction detectors.
type Side string

const (
	SideBottom Side = "bottom"
	SideTop    Side = "top"
)

// Trend is the persistent trend regime.
type Trend string

const (
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
	TrendUp      Trend = "UP"
)

// Position-change reason tags. Fixed label set, used for alerting and
// metrics only — never for control flow.
const (
	ReasonTrendUp          = "trend-up"
	ReasonTrendDown        = "trend-down"
	ReasonTopStruct        = "top-struct"
	ReasonBottomStruct     = "bottom-struct"
	ReasonTopCorrection    = "top-correction"
	ReasonBottomCorrection = "bottom-correction"
)

// Event is a single engine transition, emitted in order within a bar.
// Fields beyond Type/Symbol/TS are populated per event type:
// trend changes carry From/To, structure/correction carry Side,
// position changes carry OldTarget/NewTarget/Reason.
type Event struct {
	Type   EventType `json:"type"`
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // timestamp of the bar that produced it

	From Trend `json:"from,omitempty"`
	To   Trend `json:"to,omitempty"`

	Side Side `json:"side,omitempty"`

	OldTarget float64 `json:"old_target,omitempty"`
	NewTarget float64 `json:"new_target,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// StreamKey returns the Redis stream key: "events:{symbol}".
func (e *Event) StreamKey() string {
	return "events:" + e.Symbol
}

// JSON returns the JSON-encoded event.
func (e *Event) JSON() []byte {
	out, _ := json.Marshal(e)
	return out
}
