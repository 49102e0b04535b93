// Package backtest replays historical bars through a signal engine and
// simulates rebalancing a single-asset portfolio toward the engine's
// position target at each change.
package backtest

import (
	"fmt"
	"time"

	"mag-systemv1/internal/engine"
	"mag-systemv1/internal/model"
)

// Trade records a single rebalance executed during a run.
type Trade struct {
	TS        time.Time `json:"ts"`
	Action    string    `json:"action"` // BUY or SELL
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Target    float64   `json:"target"` // target percent after the trade
	Reason    string    `json:"reason"`
	CashAfter float64   `json:"cash_after"`
	PosAfter  float64   `json:"position_after"`
	Value     float64   `json:"total_value"`
}

// Result summarizes a completed run.
type Result struct {
	Symbol         string  `json:"symbol"`
	Personality    string  `json:"personality"`
	InitialCapital float64 `json:"initial_capital"`
	FinalValue     float64 `json:"final_value"`
	Profit         float64 `json:"profit"`
	ProfitRate     float64 `json:"profit_rate"`  // percent
	MaxDrawdown    float64 `json:"max_drawdown"` // negative percent, 0 if none
	FinalCash      float64 `json:"final_cash"`
	FinalPosition  float64 `json:"final_position"`
	BarsProcessed  int     `json:"bars_processed"`
	EventsEmitted  int     `json:"events_emitted"`
	Trades         []Trade `json:"trades"`
}

// Runner replays bars through a fresh engine and tracks portfolio state.
type Runner struct {
	InitialCapital float64
	// MinTradeValue skips rebalances whose notional is below this
	// threshold, matching how a real account avoids dust orders.
	MinTradeValue float64
}

// NewRunner returns a Runner with the given starting capital.
func NewRunner(initialCapital float64) *Runner {
	return &Runner{
		InitialCapital: initialCapital,
		MinTradeValue:  1.0,
	}
}

// Run replays bars (ascending by TS) through a fresh engine configured with
// cfg and rebalances toward each new position target at that bar's close.
func (r *Runner) Run(symbol, personality string, cfg engine.Config, bars []model.Bar) (*Result, error) {
	eng, err := engine.New(symbol, cfg)
	if err != nil {
		return nil, fmt.Errorf("backtest engine init: %w", err)
	}

	cash := r.InitialCapital
	position := 0.0
	peak := r.InitialCapital
	maxDrawdown := 0.0

	res := &Result{
		Symbol:         symbol,
		Personality:    personality,
		InitialCapital: r.InitialCapital,
	}

	for _, bar := range bars {
		events, err := eng.Ingest(bar)
		if err != nil {
			return nil, fmt.Errorf("backtest ingest %s: %w", bar.TS.Format(time.RFC3339), err)
		}
		res.BarsProcessed++
		res.EventsEmitted += len(events)

		for _, ev := range events {
			if ev.Type != model.EventPositionChanged {
				continue
			}
			trade, ok := r.rebalance(&cash, &position, bar, ev)
			if !ok {
				continue
			}
			res.Trades = append(res.Trades, trade)

			value := cash + position*bar.Close
			if value > peak {
				peak = value
			} else if peak > 0 {
				dd := (value - peak) / peak * 100
				if dd < maxDrawdown {
					maxDrawdown = dd
				}
			}
		}
	}

	lastClose := 0.0
	if n := len(bars); n > 0 {
		lastClose = bars[n-1].Close
	}
	res.FinalCash = cash
	res.FinalPosition = position
	res.FinalValue = cash + position*lastClose
	if len(bars) == 0 {
		res.FinalValue = r.InitialCapital
	}
	res.Profit = res.FinalValue - r.InitialCapital
	if r.InitialCapital > 0 {
		res.ProfitRate = res.Profit / r.InitialCapital * 100
	}
	res.MaxDrawdown = maxDrawdown
	return res, nil
}

// rebalance moves the account toward ev.NewTarget percent of total equity
// at the bar close, returning the executed trade. ok is false when the
// price is unusable or the notional is below MinTradeValue.
func (r *Runner) rebalance(cash, position *float64, bar model.Bar, ev model.Event) (Trade, bool) {
	price := bar.Close
	if price <= 0 {
		return Trade{}, false
	}

	equity := *cash + *position*price
	targetValue := equity * ev.NewTarget / 100
	currentValue := *position * price
	delta := targetValue - currentValue

	if delta > *cash {
		delta = *cash
	}
	if delta > -r.MinTradeValue && delta < r.MinTradeValue {
		return Trade{}, false
	}

	qty := delta / price
	*position += qty
	*cash -= delta
	if *position < 0 {
		*position = 0
	}
	if *cash < 0 {
		*cash = 0
	}

	action := "BUY"
	if delta < 0 {
		action = "SELL"
		qty = -qty
	}
	return Trade{
		TS:        bar.TS,
		Action:    action,
		Price:     price,
		Qty:       qty,
		Target:    ev.NewTarget,
		Reason:    ev.Reason,
		CashAfter: *cash,
		PosAfter:  *position,
		Value:     *cash + *position*price,
	}, true
}
