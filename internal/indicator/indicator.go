// Package indicator provides streaming technical indicator calculations
// over bar data.
//
// All indicators implement the Indicator interface, receiving bars and
// producing float64 values. Indicators are designed to be composable;
// Basis wires them into the derived values the signal engine consumes.
package indicator

import "mag-systemv1/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds a new bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}
