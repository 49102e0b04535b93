package engine

import (
	"context"
	"log"
	"sort"

	"mag-systemv1/internal/model"
)

// Book routes bars to one Engine per symbol, creating engines lazily
// on first sight of a symbol. All engines share one Config; nothing
// else is shared, so a Book never needs locking as long as a single
// goroutine drives it.
type Book struct {
	cfg     Config
	engines map[string]*Engine

	rejected uint64 // out-of-order bars dropped
}

// NewBook validates cfg and creates an empty book.
func NewBook(cfg Config) (*Book, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Book{
		cfg:     cfg,
		engines: make(map[string]*Engine),
	}, nil
}

// Engine returns the engine for a symbol, or nil if no bar for it has
// been seen.
func (b *Book) Engine(symbol string) *Engine {
	return b.engines[symbol]
}

// Symbols returns the tracked symbols, sorted.
func (b *Book) Symbols() []string {
	return b.symbolsInOrder()
}

func (b *Book) symbolsInOrder() []string {
	syms := make([]string, 0, len(b.engines))
	for s := range b.engines {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// Rejected returns how many out-of-order bars were dropped.
func (b *Book) Rejected() uint64 { return b.rejected }

// Ingest routes one bar to its symbol's engine.
func (b *Book) Ingest(bar model.Bar) ([]model.Event, error) {
	eng, ok := b.engines[bar.Symbol]
	if !ok {
		var err error
		eng, err = New(bar.Symbol, b.cfg)
		if err != nil {
			// cfg was validated in NewBook
			return nil, err
		}
		b.engines[bar.Symbol] = eng
	}
	events, err := eng.Ingest(bar)
	if err != nil {
		b.rejected++
	}
	return events, err
}

// Run consumes bars and emits the resulting events.
// Out-of-order bars are dropped with a log line; the stream keeps
// going. Blocks until ctx is cancelled or barCh is closed.
func (b *Book) Run(ctx context.Context, barCh <-chan model.Bar, eventCh chan<- model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			events, err := b.Ingest(bar)
			if err != nil {
				log.Printf("[engine] dropped bar: %v", err)
				continue
			}
			for _, ev := range events {
				select {
				case eventCh <- ev:
				default:
					// event channel full, drop
				}
			}
		}
	}
}
