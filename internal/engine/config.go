package engine

// TierConfig sets the position percentages the resolver moves between.
// The exact tier numbers are a product decision, so they are exposed as
// configuration rather than baked in.
type TierConfig struct {
	Full          float64 `json:"full" yaml:"full"`                       // trend-up target, also the clamp ceiling
	TopStructPct  float64 `json:"top_struct_pct" yaml:"top_struct_pct"`   // fraction of Full kept after a top structure
	BottomReentry float64 `json:"bottom_reentry" yaml:"bottom_reentry"`   // target after a bottom structure in a downtrend
}

// Clamp bounds a target to [0, Full].
func (t TierConfig) Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > t.Full {
		return t.Full
	}
	return v
}

// Config holds all tunable engine parameters for one symbol.
type Config struct {
	MidlineLength     int     `json:"midline_length" yaml:"midline_length"`
	VolatilityLength  int     `json:"volatility_length" yaml:"volatility_length"`
	VolatilityMult    float64 `json:"volatility_mult" yaml:"volatility_mult"`
	StructureLookback int     `json:"structure_lookback" yaml:"structure_lookback"`

	OscFast int `json:"osc_fast" yaml:"osc_fast"`
	OscSlow int `json:"osc_slow" yaml:"osc_slow"`
	OscRef  int `json:"osc_ref" yaml:"osc_ref"`

	Tiers TierConfig `json:"tiers" yaml:"tiers"`
}

// DefaultConfig returns the stock parameter set.
func DefaultConfig() Config {
	return Config{
		MidlineLength:     20,
		VolatilityLength:  20,
		VolatilityMult:    2.0,
		StructureLookback: 30,
		OscFast:           12,
		OscSlow:           26,
		OscRef:            9,
		Tiers: TierConfig{
			Full:          60,
			TopStructPct:  0.6,
			BottomReentry: 40,
		},
	}
}

// Validate checks the configuration, returning a *ConfigError on the
// first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MidlineLength <= 0:
		return &ConfigError{Field: "midline_length", Reason: "must be > 0"}
	case c.VolatilityLength <= 0:
		return &ConfigError{Field: "volatility_length", Reason: "must be > 0"}
	case c.VolatilityMult < 0:
		return &ConfigError{Field: "volatility_mult", Reason: "must be >= 0"}
	case c.StructureLookback <= 0:
		return &ConfigError{Field: "structure_lookback", Reason: "must be > 0"}
	case c.OscFast <= 0:
		return &ConfigError{Field: "osc_fast", Reason: "must be > 0"}
	case c.OscSlow <= 0:
		return &ConfigError{Field: "osc_slow", Reason: "must be > 0"}
	case c.OscRef <= 0:
		return &ConfigError{Field: "osc_ref", Reason: "must be > 0"}
	case c.Tiers.Full <= 0:
		return &ConfigError{Field: "tiers.full", Reason: "must be > 0"}
	case c.Tiers.TopStructPct < 0 || c.Tiers.TopStructPct > 1:
		return &ConfigError{Field: "tiers.top_struct_pct", Reason: "must be in [0,1]"}
	case c.Tiers.BottomReentry < 0:
		return &ConfigError{Field: "tiers.bottom_reentry", Reason: "must be >= 0"}
	}
	return nil
}
