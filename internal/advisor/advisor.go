// Package advisor turns signal events into human-readable, personality-tiered
// guidance. The active personality decides which events are worth surfacing
// and how the wording reads.
package advisor

import (
	"fmt"
	"strings"
	"sync"

	"mag-systemv1/internal/model"
	"mag-systemv1/internal/notification"
)

// Personality names understood by the advisor. Presets beyond these are
// treated like "middle".
const (
	ProfileConservative = "conservative"
	ProfileAggressive   = "aggressive"
	ProfileMiddle       = "middle"
)

// Advisor formats signal events as alerts. Safe for concurrent use; the
// active profile can be swapped at runtime.
type Advisor struct {
	mu      sync.RWMutex
	profile string
}

// New creates an Advisor with the given starting profile.
func New(profile string) *Advisor {
	if profile == "" {
		profile = ProfileMiddle
	}
	return &Advisor{profile: profile}
}

// Profile returns the active personality name.
func (a *Advisor) Profile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profile
}

// SetProfile swaps the active personality.
func (a *Advisor) SetProfile(name string) {
	if name == "" {
		return
	}
	a.mu.Lock()
	a.profile = name
	a.mu.Unlock()
}

// Format implements notification.Formatter. Events the active personality
// does not care about return ok=false.
func (a *Advisor) Format(ev model.Event) (notification.Alert, bool) {
	profile := a.Profile()
	if !wantsEvent(profile, ev.Type) {
		return notification.Alert{}, false
	}

	switch ev.Type {
	case model.EventPositionChanged:
		return a.formatPosition(profile, ev), true
	case model.EventTrendChanged:
		return notification.Alert{
			Level:   notification.AlertInfo,
			Title:   fmt.Sprintf("%s trend: %s → %s", ev.Symbol, ev.From, ev.To),
			Message: trendAdvice(profile, ev),
		}, true
	case model.EventStructureConfirmed:
		return notification.Alert{
			Level:   notification.AlertInfo,
			Title:   fmt.Sprintf("%s %s structure confirmed", ev.Symbol, ev.Side),
			Message: structureAdvice(profile, ev),
		}, true
	case model.EventCorrectionFired:
		return notification.Alert{
			Level:   notification.AlertInfo,
			Title:   fmt.Sprintf("%s %s correction", ev.Symbol, ev.Side),
			Message: correctionAdvice(profile, ev),
		}, true
	}
	return notification.Alert{}, false
}

// wantsEvent filters event types per personality. Conservative profiles only
// hear about position changes; aggressive ones get every signal.
func wantsEvent(profile string, evType model.EventType) bool {
	switch profile {
	case ProfileConservative:
		return evType == model.EventPositionChanged
	case ProfileAggressive:
		return true
	default:
		return evType == model.EventPositionChanged || evType == model.EventStructureConfirmed
	}
}

func (a *Advisor) formatPosition(profile string, ev model.Event) notification.Alert {
	verb := "hold"
	level := notification.AlertInfo
	switch {
	case ev.NewTarget > ev.OldTarget:
		verb = "build"
	case ev.NewTarget < ev.OldTarget:
		verb = "cut"
		level = notification.AlertWarning
	}
	if ev.NewTarget == 0 && ev.OldTarget > 0 {
		verb = "exit"
		level = notification.AlertCritical
	}

	title := fmt.Sprintf("%s: %s to %.0f%%", ev.Symbol, verb, ev.NewTarget)
	return notification.Alert{
		Level:   level,
		Title:   title,
		Message: RenderAdvice(profile, ev),
	}
}

// RenderAdvice builds the multi-line advice block for a position change.
func RenderAdvice(profile string, ev model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "symbol: %s\n", ev.Symbol)
	fmt.Fprintf(&b, "target: %.0f%% → %.0f%% (%s)\n", ev.OldTarget, ev.NewTarget, ev.Reason)
	fmt.Fprintf(&b, "profile: %s\n", profile)

	switch {
	case ev.NewTarget > ev.OldTarget:
		switch profile {
		case ProfileConservative:
			b.WriteString("action: scale in over several entries, keep a tight stop")
		case ProfileAggressive:
			b.WriteString("action: build to target in one move")
		default:
			b.WriteString("action: build toward target at the next close")
		}
	case ev.NewTarget < ev.OldTarget && ev.NewTarget > 0:
		switch profile {
		case ProfileConservative:
			b.WriteString("action: reduce immediately, protect the remainder")
		case ProfileAggressive:
			b.WriteString("action: trim to target, keep the core position")
		default:
			b.WriteString("action: cut toward target at the next close")
		}
	case ev.NewTarget == 0 && ev.OldTarget > 0:
		b.WriteString("action: close the position, stand aside")
	default:
		b.WriteString("action: no change required")
	}
	return b.String()
}

func trendAdvice(profile string, ev model.Event) string {
	if ev.To == model.TrendUp {
		return fmt.Sprintf("upper band breached; expect the resolver to favor exposure (profile %s)", profile)
	}
	if ev.To == model.TrendDown {
		return fmt.Sprintf("lower band breached; expect exposure to be wound down (profile %s)", profile)
	}
	return fmt.Sprintf("trend now %s (profile %s)", ev.To, profile)
}

func structureAdvice(profile string, ev model.Event) string {
	if ev.Side == model.SideBottom {
		return "momentum diverged against a new low and reversed; a base may be forming"
	}
	return "momentum diverged against a new high and reversed; strength may be stalling"
}

func correctionAdvice(profile string, ev model.Event) string {
	if ev.Side == model.SideBottom {
		return "oscillator fell back through the bottom reference level"
	}
	return "oscillator rose back through the top reference level"
}
