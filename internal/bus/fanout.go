package bus

import (
	"context"
	"log"
	"sync"

	"mag-systemv1/internal/model"
)

// FanOut broadcasts events from a single input channel to N named
// subscriber channels. If a subscriber channel is full, the event is
// dropped for that subscriber to prevent a slow sink from blocking the
// engine pipeline.
type FanOut struct {
	mu      sync.RWMutex
	names   []string
	outputs []chan model.Event
	bufSize int

	// OnDrop is called with the subscriber name when an event is
	// dropped for that subscriber.
	OnDrop func(subscriber string)
}

// New creates a FanOut with the given buffer size for subscriber channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new named subscriber channel.
func (f *FanOut) Subscribe(name string) <-chan model.Event {
	ch := make(chan model.Event, f.bufSize)
	f.mu.Lock()
	f.names = append(f.names, name)
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Event) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- ev:
				default:
					if f.OnDrop != nil {
						f.OnDrop(f.names[i])
					} else {
						log.Printf("[bus] subscriber %s full, dropping %s event for %s", f.names[i], ev.Type, ev.Symbol)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

