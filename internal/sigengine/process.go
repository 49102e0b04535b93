package sigengine

import (
	"context"
	"fmt"
	"log"
	"time"

	"mag-systemv1/internal/model"
	"mag-systemv1/internal/replay"
)

// startConsumer starts the Redis stream XREADGROUP consumer in a goroutine.
func (svc *Service) startConsumer(ctx context.Context) {
	if len(svc.streams) == 0 {
		return
	}
	go func() {
		if err := svc.redisReader.ConsumeBars(ctx, svc.streams, svc.rawBarCh); err != nil && ctx.Err() == nil {
			log.Printf("[sigengine] consumer error: %v", err)
		}
	}()
}

// startReplay feeds stored bars through the same channel the live
// consumer uses, at cfg.ReplaySpeed.
func (svc *Service) startReplay(ctx context.Context) {
	if svc.sqlReader == nil {
		log.Println("[sigengine] replay mode requested but sqlite reader is unavailable")
		return
	}
	go func() {
		replayer := replay.New(svc.sqlReader)
		if err := replayer.Run(ctx, svc.symbols, time.Time{}, svc.cfg.ReplaySpeed, svc.rawBarCh); err != nil && ctx.Err() == nil {
			log.Printf("[sigengine] replay error: %v", err)
		}
	}()
}

// fillRing moves consumed bars into the SPSC ring so a slow ingest
// never blocks the Redis consumer. Overflows drop the oldest pressure
// onto the counter, not onto XREADGROUP.
func (svc *Service) fillRing(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-svc.rawBarCh:
			if !ok {
				return
			}
			if !svc.ring.Push(bar) {
				svc.prom.RingBufOverflow.Inc()
			}
		}
	}
}

// processLoop drains the ring, runs each bar through the engine book
// and fans the resulting events out to every sink.
func (svc *Service) processLoop(ctx context.Context) {
	const (
		ingestLatencyKey           = "metrics:sigengine:ingest_ms"
		ingestLatencyTTL           = 30 * time.Second
		ingestLatencyPublishMinDur = 2 * time.Second
		ingestLatencyAlpha         = 0.2
	)
	var (
		latencyEwmaMs      float64
		lastLatencyPublish time.Time
	)

	for {
		if ctx.Err() != nil {
			return
		}

		bar, ok := svc.ring.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}

		start := time.Now()
		events, err := svc.book.Ingest(bar)
		elapsed := time.Since(start)

		svc.prom.BarsTotal.Inc()
		svc.prom.IngestDur.Observe(elapsed.Seconds())
		if err != nil {
			svc.prom.BarsRejected.Inc()
			log.Printf("[sigengine] dropped bar: %v", err)
			continue
		}

		svc.health.SetLastBarTime(bar.TS)
		svc.prom.EnginesActive.Set(float64(len(svc.book.Symbols())))

		wrStart := time.Now()
		svc.buffered.PublishBar(bar)
		svc.prom.RedisWriteDur.Observe(time.Since(wrStart).Seconds())

		select {
		case svc.sqlBarCh <- bar:
		default:
			svc.prom.FanoutDropsTotal.WithLabelValues("sqlite_bars").Inc()
		}

		for _, ev := range events {
			svc.prom.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
			switch ev.Type {
			case model.EventPositionChanged:
				svc.prom.PositionTarget.WithLabelValues(ev.Symbol).Set(ev.NewTarget)
			case model.EventTrendChanged:
				svc.prom.TrendState.WithLabelValues(ev.Symbol).Set(trendGauge(ev.To))
			}
			select {
			case svc.eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}

		// Track EWMA ingest latency and publish periodically for the
		// gateway's metrics broadcast.
		latencyMs := float64(elapsed.Microseconds()) / 1000.0
		if latencyEwmaMs == 0 {
			latencyEwmaMs = latencyMs
		} else {
			latencyEwmaMs = latencyEwmaMs*(1.0-ingestLatencyAlpha) + latencyMs*ingestLatencyAlpha
		}
		if time.Since(lastLatencyPublish) >= ingestLatencyPublishMinDur {
			cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
			if cctx.Err() == nil {
				_ = svc.redisWriter.Client().Set(
					cctx,
					ingestLatencyKey,
					fmt.Sprintf("%.3f", latencyEwmaMs),
					ingestLatencyTTL,
				).Err()
			}
			cancel()
			lastLatencyPublish = time.Now()
		}
	}
}

// startEventFanout wires the event bus: the engine feeds eventCh, the
// bus broadcasts to the Redis, SQLite and alert sinks.
func (svc *Service) startEventFanout(ctx context.Context) {
	svc.eventBus.OnDrop = func(subscriber string) {
		svc.prom.FanoutDropsTotal.WithLabelValues(subscriber).Inc()
	}

	redisCh := svc.eventBus.Subscribe("redis")
	sqliteCh := svc.eventBus.Subscribe("sqlite")
	alertCh := svc.eventBus.Subscribe("alerts")

	go svc.eventBus.Run(ctx, svc.eventCh)
	go svc.runRedisEventSink(ctx, redisCh)
	go svc.runSQLiteEventSink(ctx, sqliteCh)
	go svc.dispatcher.Run(ctx, alertCh)
}

func (svc *Service) runRedisEventSink(ctx context.Context, ch <-chan model.Event) {
	for ev := range ch {
		svc.buffered.WriteEvent(ev)
		if ev.Type == model.EventPositionChanged {
			svc.redisWriter.WritePosition(ctx, ev.Symbol, ev.NewTarget)
		}
	}
}

func (svc *Service) runSQLiteEventSink(ctx context.Context, ch <-chan model.Event) {
	if svc.sqlWriter == nil {
		for range ch {
		}
		return
	}
	for ev := range ch {
		start := time.Now()
		svc.sqlWriter.WriteEvents(ctx, []model.Event{ev})
		if ev.Type == model.EventPositionChanged {
			svc.sqlWriter.WritePosition(ctx, ev.Symbol, ev.NewTarget)
		}
		svc.prom.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
}

func trendGauge(t model.Trend) float64 {
	switch t {
	case model.TrendUp:
		return 1
	case model.TrendDown:
		return -1
	default:
		return 0
	}
}
