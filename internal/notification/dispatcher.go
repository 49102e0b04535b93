package notification

import (
	"context"
	"log"

	"mag-systemv1/internal/model"
)

// Formatter turns a signal event into an alert. Returning false skips the
// event without sending anything.
type Formatter interface {
	Format(ev model.Event) (Alert, bool)
}

// Dispatcher consumes signal events and delivers formatted alerts.
type Dispatcher struct {
	notifier  Notifier
	formatter Formatter
}

// NewDispatcher creates a Dispatcher delivering through the given notifier.
func NewDispatcher(n Notifier, f Formatter) *Dispatcher {
	return &Dispatcher{notifier: n, formatter: f}
}

// Run consumes events until the channel closes or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Dispatch(ctx, ev)
		}
	}
}

// Dispatch formats and sends a single event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) {
	alert, ok := d.formatter.Format(ev)
	if !ok {
		return
	}
	if err := d.notifier.Send(ctx, alert); err != nil {
		log.Printf("[notify] failed to deliver %s alert for %s: %v", ev.Type, ev.Symbol, err)
	}
}
