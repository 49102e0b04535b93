package gateway

// BarOut is the REST response type for /api/bars.
type BarOut struct {
	TS     string  `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Symbol string  `json:"symbol"`
}

// EventOut is the REST response type for /api/events.
type EventOut struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	TS        string  `json:"ts"`
	From      string  `json:"from,omitempty"`
	To        string  `json:"to,omitempty"`
	Side      string  `json:"side,omitempty"`
	OldTarget float64 `json:"old_target,omitempty"`
	NewTarget float64 `json:"new_target,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}
