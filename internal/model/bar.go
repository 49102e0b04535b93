package model

import (
	"encoding/json"
	"time"
)

// Bar represents one finished OHLC price bar for a single symbol.
// Bars are immutable once ingested; the engine only ever appends.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar close time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// Key returns the routing key for this bar's symbol.
func (b *Bar) Key() string {
	return b.Symbol
}

// StreamKey returns the Redis stream key: "bars:{symbol}".
func (b *Bar) StreamKey() string {
	return "bars:" + b.Symbol
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// IndicatorSnapshot holds the per-bar derived values the engine works from.
// Ready is false until every trailing window has filled; downstream
// components treat a not-ready snapshot as "no signal this bar".
type IndicatorSnapshot struct {
	Midline   float64 `json:"midline"`
	UpperBand float64 `json:"upper_band"`
	LowerBand float64 `json:"lower_band"`
	Osc       float64 `json:"osc"`     // fast oscillator
	OscRef    float64 `json:"osc_ref"` // slow/reference oscillator
	Ready     bool    `json:"ready"`
}
