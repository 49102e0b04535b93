package backtest

import (
	"math"
	"testing"
	"time"

	"mag-systemv1/internal/engine"
	"mag-systemv1/internal/model"
)

func testConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.MidlineLength = 3
	cfg.VolatilityLength = 3
	cfg.VolatilityMult = 0 // bands collapse onto the midline
	cfg.StructureLookback = 100
	cfg.OscFast = 2
	cfg.OscSlow = 3
	cfg.OscRef = 2
	return cfg
}

func barSeries(closes []float64) []model.Bar {
	bars := make([]model.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, model.Bar{
			Symbol: "BTC",
			TS:     time.Unix(int64(i+1)*60, 0),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
		})
	}
	return bars
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestRunner_BuyThenExit(t *testing.T) {
	// Flat warm-up, a down break the account ignores (target already 0),
	// then an up break at 98 that buys to 60%, and a crash to 90 that
	// flips the trend down and liquidates.
	closes := []float64{100, 100, 100, 100, 100, 100, 99, 98, 97, 98, 99, 100, 101, 90}
	bars := barSeries(closes)

	r := NewRunner(10000)
	res, err := r.Run("BTC", "middle", testConfig(), bars)
	if err != nil {
		t.Fatal(err)
	}

	if res.BarsProcessed != len(bars) {
		t.Errorf("bars processed = %d, want %d", res.BarsProcessed, len(bars))
	}
	if len(res.Trades) != 2 {
		t.Fatalf("trades = %d, want 2 (buy then sell): %+v", len(res.Trades), res.Trades)
	}

	buy := res.Trades[0]
	if buy.Action != "BUY" || buy.Price != 98 || buy.Target != 60 {
		t.Errorf("first trade = %+v, want BUY at 98 toward 60%%", buy)
	}
	if !approx(buy.CashAfter, 4000) {
		t.Errorf("cash after buy = %.4f, want 4000", buy.CashAfter)
	}
	if !approx(buy.PosAfter, 6000.0/98) {
		t.Errorf("position after buy = %.6f, want %.6f", buy.PosAfter, 6000.0/98)
	}

	sell := res.Trades[1]
	if sell.Action != "SELL" || sell.Price != 90 || sell.Target != 0 {
		t.Errorf("second trade = %+v, want SELL at 90 toward 0%%", sell)
	}
	if sell.PosAfter != 0 {
		t.Errorf("position after sell = %.6f, want 0", sell.PosAfter)
	}

	wantFinal := 4000 + (6000.0/98)*90
	if !approx(res.FinalValue, wantFinal) {
		t.Errorf("final value = %.4f, want %.4f", res.FinalValue, wantFinal)
	}
	if res.FinalPosition != 0 {
		t.Errorf("final position = %.6f, want 0", res.FinalPosition)
	}
	if res.Profit >= 0 || res.ProfitRate >= 0 {
		t.Errorf("expected a loss, got profit %.4f (%.2f%%)", res.Profit, res.ProfitRate)
	}
	if res.MaxDrawdown >= 0 {
		t.Errorf("max drawdown = %.4f, want negative", res.MaxDrawdown)
	}
}

func TestRunner_NoBars(t *testing.T) {
	r := NewRunner(5000)
	res, err := r.Run("BTC", "middle", testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.FinalValue != 5000 || res.Profit != 0 || len(res.Trades) != 0 {
		t.Errorf("empty run = %+v, want untouched capital", res)
	}
}

func TestRunner_FlatSeriesNeverTrades(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 250
	}
	r := NewRunner(10000)
	res, err := r.Run("BTC", "conservative", testConfig(), barSeries(closes))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("flat series traded: %+v", res.Trades)
	}
	if res.FinalValue != 10000 {
		t.Errorf("final value = %.2f, want 10000", res.FinalValue)
	}
	if res.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %.4f, want 0", res.MaxDrawdown)
	}
}

func TestRunner_InvalidConfigRejected(t *testing.T) {
	cfg := testConfig()
	cfg.MidlineLength = 0
	r := NewRunner(10000)
	if _, err := r.Run("BTC", "middle", cfg, nil); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRunner_DustRebalanceSkipped(t *testing.T) {
	r := NewRunner(10000)
	r.MinTradeValue = 10000 // everything is dust
	closes := []float64{100, 100, 100, 100, 100, 100, 99, 98, 97, 98}
	res, err := r.Run("BTC", "middle", testConfig(), barSeries(closes))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("dust threshold ignored: %+v", res.Trades)
	}
	// The position-change event still counts even though no trade ran.
	if res.EventsEmitted == 0 {
		t.Error("expected engine events despite skipped trades")
	}
}
