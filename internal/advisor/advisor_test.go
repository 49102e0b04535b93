package advisor

import (
	"strings"
	"testing"
	"time"

	"mag-systemv1/internal/model"
	"mag-systemv1/internal/notification"
)

func posEvent(old, new float64, reason string) model.Event {
	return model.Event{
		Type:      model.EventPositionChanged,
		Symbol:    "BTCUSDT",
		TS:        time.Unix(1700000000, 0).UTC(),
		OldTarget: old,
		NewTarget: new,
		Reason:    reason,
	}
}

func TestAdvisor_PositionAlertVerbs(t *testing.T) {
	a := New(ProfileMiddle)

	tests := []struct {
		name      string
		ev        model.Event
		wantTitle string
		wantLevel notification.AlertLevel
	}{
		{"build", posEvent(0, 60, model.ReasonTrendUp), "BTCUSDT: build to 60%", notification.AlertInfo},
		{"cut", posEvent(60, 36, model.ReasonTopStruct), "BTCUSDT: cut to 36%", notification.AlertWarning},
		{"exit", posEvent(60, 0, model.ReasonTrendDown), "BTCUSDT: exit to 0%", notification.AlertCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, ok := a.Format(tt.ev)
			if !ok {
				t.Fatal("expected position event to produce an alert")
			}
			if alert.Title != tt.wantTitle {
				t.Errorf("title: got %q, want %q", alert.Title, tt.wantTitle)
			}
			if alert.Level != tt.wantLevel {
				t.Errorf("level: got %s, want %s", alert.Level, tt.wantLevel)
			}
			if !strings.Contains(alert.Message, tt.ev.Reason) {
				t.Errorf("message should carry reason tag %q:\n%s", tt.ev.Reason, alert.Message)
			}
		})
	}
}

func TestAdvisor_ProfileFiltering(t *testing.T) {
	trendEv := model.Event{
		Type:   model.EventTrendChanged,
		Symbol: "BTCUSDT",
		From:   model.TrendNeutral,
		To:     model.TrendUp,
	}
	structEv := model.Event{
		Type:   model.EventStructureConfirmed,
		Symbol: "BTCUSDT",
		Side:   model.SideBottom,
	}
	corrEv := model.Event{
		Type:   model.EventCorrectionFired,
		Symbol: "BTCUSDT",
		Side:   model.SideTop,
	}

	a := New(ProfileConservative)
	for _, ev := range []model.Event{trendEv, structEv, corrEv} {
		if _, ok := a.Format(ev); ok {
			t.Errorf("conservative profile should skip %s", ev.Type)
		}
	}
	if _, ok := a.Format(posEvent(0, 40, model.ReasonTrendUp)); !ok {
		t.Error("conservative profile should still hear position changes")
	}

	a.SetProfile(ProfileAggressive)
	for _, ev := range []model.Event{trendEv, structEv, corrEv} {
		if _, ok := a.Format(ev); !ok {
			t.Errorf("aggressive profile should format %s", ev.Type)
		}
	}

	a.SetProfile(ProfileMiddle)
	if _, ok := a.Format(trendEv); ok {
		t.Error("middle profile should skip trend changes")
	}
	if _, ok := a.Format(structEv); !ok {
		t.Error("middle profile should format structure confirmations")
	}
}

func TestRenderAdvice_WordingPerProfile(t *testing.T) {
	ev := posEvent(0, 60, model.ReasonTrendUp)

	conservative := RenderAdvice(ProfileConservative, ev)
	if !strings.Contains(conservative, "scale in") {
		t.Errorf("conservative build advice should mention scaling in:\n%s", conservative)
	}

	aggressive := RenderAdvice(ProfileAggressive, ev)
	if !strings.Contains(aggressive, "one move") {
		t.Errorf("aggressive build advice should mention a single entry:\n%s", aggressive)
	}

	exit := RenderAdvice(ProfileMiddle, posEvent(60, 0, model.ReasonTrendDown))
	if !strings.Contains(exit, "close the position") {
		t.Errorf("exit advice should instruct closing:\n%s", exit)
	}
}

func TestAdvisor_UnknownProfileActsLikeMiddle(t *testing.T) {
	a := New("custom-preset")
	if _, ok := a.Format(posEvent(0, 60, model.ReasonTrendUp)); !ok {
		t.Error("unknown profile should still format position changes")
	}
	if _, ok := a.Format(model.Event{Type: model.EventTrendChanged, Symbol: "X"}); ok {
		t.Error("unknown profile should skip trend changes like middle")
	}
}
