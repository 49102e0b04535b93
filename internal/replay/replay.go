// Package replay provides a bar replayer that reads historical data from
// SQLite and emits it at configurable speed for backtesting.
package replay

import (
	"context"
	"log"
	"time"

	"mag-systemv1/internal/model"
)

// Replayer reads historical bars from a BarReader and replays them at a
// configurable speed multiplier.
type Replayer struct {
	reader model.BarReader
}

// New creates a Replayer backed by a bar store reader.
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader}
}

// Run replays all bars for the given symbols, emitting them into outCh.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as fast
// as possible. after filters bars to those strictly after that time
// (zero time = all).
func (r *Replayer) Run(ctx context.Context, symbols []string, after time.Time, speed float64, outCh chan<- model.Bar) error {
	afterTS := int64(0)
	if !after.IsZero() {
		afterTS = after.Unix()
	}

	// Collect all bars across symbols, sorted by time
	var allBars []model.Bar
	for _, sym := range symbols {
		bars, err := r.reader.ReadBars(sym, afterTS)
		if err != nil {
			return err
		}
		allBars = append(allBars, bars...)
	}

	if len(allBars) == 0 {
		log.Println("[replay] no bars found in store")
		return nil
	}

	// Sort by timestamp (they may be interleaved across symbols)
	sortBars(allBars)

	log.Printf("[replay] loaded %d bars across %d symbols, speed=%.1fx", len(allBars), len(symbols), speed)

	var prevTS time.Time
	emitted := 0

	for _, b := range allBars {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between bars
		if speed > 0 && !prevTS.IsZero() {
			gap := b.TS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = b.TS

		outCh <- b
		emitted++
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return nil
}

// sortBars sorts bars by timestamp (insertion sort, stable and fine for
// replay sizes).
func sortBars(bars []model.Bar) {
	for i := 1; i < len(bars); i++ {
		for j := i; j > 0 && bars[j].TS.Before(bars[j-1].TS); j-- {
			bars[j], bars[j-1] = bars[j-1], bars[j]
		}
	}
}
