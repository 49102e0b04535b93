package bus

import (
	"context"
	"testing"
	"time"

	"mag-systemv1/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe("redis")
	out2 := fo.Subscribe("alerts")

	input := make(chan model.Event, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go fo.Run(ctx, input)

	ev := model.Event{
		Type:      model.EventPositionChanged,
		Symbol:    "BTCUSDT",
		NewTarget: 60,
		Reason:    model.ReasonTrendUp,
	}

	input <- ev
	time.Sleep(50 * time.Millisecond)

	select {
	case got := <-out1:
		if got.Symbol != "BTCUSDT" {
			t.Errorf("out1: expected symbol BTCUSDT, got %s", got.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for event")
	}

	select {
	case got := <-out2:
		if got.NewTarget != 60 {
			t.Errorf("out2: expected target 60, got %.1f", got.NewTarget)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for event")
	}

	cancel()
}

func TestFanOut_SlowSubscriberDrops(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe("slow")

	dropped := make(chan string, 10)
	fo.OnDrop = func(name string) { dropped <- name }

	input := make(chan model.Event, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	// Nobody reads from slow; the second event must overflow its buffer.
	input <- model.Event{Type: model.EventTrendChanged, Symbol: "BTCUSDT"}
	input <- model.Event{Type: model.EventTrendChanged, Symbol: "BTCUSDT"}

	select {
	case name := <-dropped:
		if name != "slow" {
			t.Errorf("dropped subscriber = %q, want slow", name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drop callback")
	}

	if got := <-slow; got.Symbol != "BTCUSDT" {
		t.Errorf("first event lost: %+v", got)
	}
}
