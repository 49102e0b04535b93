package model

import (
	"context"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the signal engine from concrete storage
// implementations (Redis, SQLite). Each implementation satisfies one or
// more of these interfaces.

// BarWriter persists closed bars.
type BarWriter interface {
	// Run reads bars from barCh and writes them.
	// Blocks until ctx is cancelled or barCh is closed.
	Run(ctx context.Context, barCh <-chan Bar)

	// Close releases underlying resources.
	Close() error
}

// BarReader reads historical bars for backfill, replay and backtests.
type BarReader interface {
	// ReadBars reads bars for a symbol with TS strictly after afterTS
	// (unix seconds), in ascending order.
	ReadBars(symbol string, afterTS int64) ([]Bar, error)

	// Symbols lists the distinct symbols present in the store.
	Symbols() ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// EventWriter persists engine events and position targets.
type EventWriter interface {
	// WriteEvents writes a batch of events produced by one bar.
	WriteEvents(ctx context.Context, events []Event)

	// WritePosition publishes the current position target for a symbol.
	WritePosition(ctx context.Context, symbol string, target float64)

	// Close releases underlying resources.
	Close() error
}

// SnapshotStore reads and writes engine snapshots as raw JSON.
// Using []byte avoids a model→engine→model import cycle.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded engine snapshot.
	SaveSnapshotJSON(data []byte) error

	// ReadLatestSnapshotJSON loads the most recent snapshot as raw JSON.
	// Returns nil, nil if no snapshot exists.
	ReadLatestSnapshotJSON() ([]byte, error)
}

// StreamConsumer consumes bars from a stream (e.g. Redis Streams).
type StreamConsumer interface {
	// ConsumeBars reads bars via consumer groups.
	// Blocks until ctx is cancelled.
	ConsumeBars(ctx context.Context, streams []string, out chan<- Bar) error

	// RecoverPending processes any unACKed messages from a previous
	// crash and reports how many it reclaimed.
	RecoverPending(ctx context.Context, streams []string, out chan<- Bar) (int, error)

	// EnsureConsumerGroup creates consumer groups on streams.
	EnsureConsumerGroup(ctx context.Context, streams []string) error

	// Close releases underlying resources.
	Close() error
}
