package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"mag-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: roughly a week of minute bars
	streamBarsMaxLen   = 10080
	streamEventsMaxLen = 5000
	defaultLatestTTL   = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes bars, engine events and position targets to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads bars from barCh and writes them to Redis.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			w.writeBar(ctx, bar)
		}
	}
}

// writeBar performs pipelined writes for one bar.
func (w *Writer) writeBar(ctx context.Context, bar model.Bar) {
	latestKey := "bar:latest:" + bar.Symbol
	streamKey := bar.StreamKey()
	pubsubCh := "pub:bar:" + bar.Symbol
	jsonData := string(bar.JSON())

	pipe := w.client.Pipeline()

	// SET latest bar with TTL
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	// XADD to stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: streamBarsMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	// PUBLISH to pubsub channel
	pipe.Publish(ctx, pubsubCh, jsonData)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] bar pipeline error for %s: %v", bar.Key(), err)
	}
}

// PublishBar refreshes the latest-bar key and notifies pubsub
// subscribers without appending to the stream. Used when the bar was
// consumed from the stream itself.
func (w *Writer) PublishBar(ctx context.Context, bar model.Bar) {
	jsonData := string(bar.JSON())

	pipe := w.client.Pipeline()
	pipe.Set(ctx, "bar:latest:"+bar.Symbol, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, "pub:bar:"+bar.Symbol, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] bar publish error for %s: %v", bar.Key(), err)
	}
}

// WriteEvents writes one bar's events in a single pipeline:
// XADD to events:{symbol} plus PUBLISH for real-time subscribers.
func (w *Writer) WriteEvents(ctx context.Context, events []model.Event) {
	if len(events) == 0 {
		return
	}

	pipe := w.client.Pipeline()
	for i := range events {
		ev := &events[i]
		jsonData := string(ev.JSON())

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: ev.StreamKey(),
			MaxLen: streamEventsMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Publish(ctx, "pub:events:"+ev.Symbol, jsonData)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] event pipeline error (%d events): %v", len(events), err)
	}
}

// WritePosition publishes the current position target for a symbol.
func (w *Writer) WritePosition(ctx context.Context, symbol string, target float64) {
	val := strconv.FormatFloat(target, 'f', -1, 64)

	pipe := w.client.Pipeline()
	pipe.Set(ctx, "position:"+symbol, val, 0)
	pipe.Publish(ctx, "pub:position:"+symbol, val)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] position pipeline error for %s: %v", symbol, err)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
