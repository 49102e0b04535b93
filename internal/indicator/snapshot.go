package indicator

// Snapshottable is implemented by indicators that support state serialization.
type Snapshottable interface {
	Indicator
	Snapshot() StateSnapshot
	RestoreFromSnapshot(snap StateSnapshot) error
}

// StateSnapshot holds the serialized state of a single indicator instance.
// One flat struct covers every indicator type; unused fields are omitted.
type StateSnapshot struct {
	Type   string `json:"type"`             // "SMA", "EMA", "STDDEV", "OSC"
	Period int    `json:"period,omitempty"` // indicator period

	// Window fields (SMA, StdDev)
	Buf   []float64 `json:"buf,omitempty"`
	Idx   int       `json:"idx,omitempty"`
	Sum   float64   `json:"sum,omitempty"`
	SumSq float64   `json:"sum_sq,omitempty"`

	Count   int     `json:"count"`
	Current float64 `json:"current"`

	// EMA fields
	Multiplier float64 `json:"multiplier,omitempty"`

	// Composite indicators nest their component states here.
	Sub []StateSnapshot `json:"sub,omitempty"`
}
