package replay

import (
	"context"
	"testing"
	"time"

	"mag-systemv1/internal/model"
)

type fakeReader struct {
	bars map[string][]model.Bar
}

func (f *fakeReader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range f.bars[symbol] {
		if b.TS.Unix() > afterTS {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeReader) Symbols() ([]string, error) {
	var syms []string
	for s := range f.bars {
		syms = append(syms, s)
	}
	return syms, nil
}

func (f *fakeReader) Close() error { return nil }

func bar(sym string, sec int64, close float64) model.Bar {
	return model.Bar{Symbol: sym, TS: time.Unix(sec, 0), Close: close}
}

func TestReplayer_InterleavesSymbolsByTime(t *testing.T) {
	reader := &fakeReader{bars: map[string][]model.Bar{
		"BTCUSDT": {bar("BTCUSDT", 60, 100), bar("BTCUSDT", 180, 102)},
		"ETHUSDT": {bar("ETHUSDT", 120, 50)},
	}}

	outCh := make(chan model.Bar, 10)
	r := New(reader)
	if err := r.Run(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, time.Time{}, 0, outCh); err != nil {
		t.Fatal(err)
	}
	close(outCh)

	var got []model.Bar
	for b := range outCh {
		got = append(got, b)
	}
	if len(got) != 3 {
		t.Fatalf("replayed %d bars, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TS.Before(got[i-1].TS) {
			t.Errorf("bars out of order at %d: %v after %v", i, got[i].TS, got[i-1].TS)
		}
	}
	if got[1].Symbol != "ETHUSDT" {
		t.Errorf("middle bar = %s, want ETHUSDT interleaved between the BTC bars", got[1].Symbol)
	}
}

func TestReplayer_AfterFilter(t *testing.T) {
	reader := &fakeReader{bars: map[string][]model.Bar{
		"BTCUSDT": {bar("BTCUSDT", 60, 100), bar("BTCUSDT", 120, 101), bar("BTCUSDT", 180, 102)},
	}}

	outCh := make(chan model.Bar, 10)
	r := New(reader)
	if err := r.Run(context.Background(), []string{"BTCUSDT"}, time.Unix(120, 0), 0, outCh); err != nil {
		t.Fatal(err)
	}
	close(outCh)

	var got []model.Bar
	for b := range outCh {
		got = append(got, b)
	}
	if len(got) != 1 || got[0].TS.Unix() != 180 {
		t.Fatalf("after filter left %+v, want only the ts=180 bar", got)
	}
}

func TestReplayer_CancelStopsEmission(t *testing.T) {
	reader := &fakeReader{bars: map[string][]model.Bar{
		"BTCUSDT": {bar("BTCUSDT", 60, 100), bar("BTCUSDT", 120, 101)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outCh := make(chan model.Bar, 10)
	r := New(reader)
	if err := r.Run(ctx, []string{"BTCUSDT"}, time.Time{}, 1.0, outCh); err == nil {
		t.Fatal("expected context error")
	}
}
