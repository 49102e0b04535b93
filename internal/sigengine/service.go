// Package sigengine is the top-level orchestrator for the signal engine
// service. It wires config, stores, the engine book, the gateway and the
// alert dispatcher, and manages their lifecycle.
package sigengine

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strconv"
	"time"

	"mag-systemv1/config"
	"mag-systemv1/internal/advisor"
	"mag-systemv1/internal/bus"
	"mag-systemv1/internal/engine"
	"mag-systemv1/internal/metrics"
	"mag-systemv1/internal/model"
	"mag-systemv1/internal/notification"
	"mag-systemv1/internal/ringbuf"
	redisstore "mag-systemv1/internal/store/redis"
	sqlitestore "mag-systemv1/internal/store/sqlite"
)

const snapshotKey = "snapshot:sigengine:latest"

// Service wires all subsystems of the signal engine.
type Service struct {
	cfg           *config.Config
	personalities map[string]engine.Config

	book       *engine.Book
	symbols    []string
	streams    []string
	lastStream string // stream ID marker restored from snapshot

	redisReader *redisstore.Reader
	redisWriter *redisstore.Writer
	buffered    *redisstore.BufferedWriter
	breaker     *redisstore.CircuitBreaker
	sqlWriter   *sqlitestore.Writer
	sqlReader   *sqlitestore.Reader

	prom    *metrics.Metrics
	health  *metrics.HealthStatus
	promSrv *metrics.Server

	advisor    *advisor.Advisor
	dispatcher *notification.Dispatcher

	ring     *ringbuf.Ring
	eventBus *bus.FanOut
	rawBarCh chan model.Bar
	sqlBarCh chan model.Bar
	eventCh  chan model.Event
}

// New creates a Service from the given Config.
// It connects to Redis and SQLite and prepares the engine book.
func New(cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:           cfg,
		personalities: cfg.ResolvePersonalities(),
		symbols:       cfg.ParseSymbols(),
		prom:          metrics.NewMetrics(),
		health:        metrics.NewHealthStatus(),
		ring:          ringbuf.New(8192),
		eventBus:      bus.New(1024),
		rawBarCh:      make(chan model.Bar, 5000),
		sqlBarCh:      make(chan model.Bar, 5000),
		eventCh:       make(chan model.Event, 1024),
	}

	// ---- Connect to Redis ----
	var err error
	svc.redisReader, err = redisstore.NewReader(redisstore.ReaderConfig{
		Addr:          cfg.RedisAddr,
		Password:      cfg.RedisPassword,
		ConsumerGroup: "sigengine",
		ConsumerName:  "worker-1",
	})
	if err != nil {
		return nil, err
	}

	svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		svc.redisReader.Close()
		return nil, err
	}

	svc.breaker = redisstore.NewCircuitBreaker(5, 10*time.Second)
	svc.breaker.OnStateChange = func(from, to redisstore.State) {
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
		log.Printf("[sigengine] redis circuit breaker %s → %s", from, to)
	}

	// ---- Open SQLite ----
	os.MkdirAll("data", 0o755)
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[sigengine] WARNING: sqlite writer init failed: %v (continuing without persistence)", err)
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Printf("[sigengine] WARNING: sqlite reader init failed: %v", err)
	}

	// ---- Alerting ----
	svc.advisor = advisor.New(cfg.Personality)
	svc.dispatcher = notification.NewDispatcher(svc.buildNotifier(), svc.advisor)

	svc.health.SetSymbols(svc.symbols)
	svc.promSrv = metrics.NewServer(cfg.MetricsAddr, svc.health)

	return svc, nil
}

// buildNotifier assembles the notifier chain from config. The log
// backend is always present; Telegram and webhook join when configured.
func (svc *Service) buildNotifier() notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if svc.cfg.TelegramBotToken != "" && svc.cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(svc.cfg.TelegramBotToken, svc.cfg.TelegramChatID))
	}
	if svc.cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(svc.cfg.WebhookURL))
	}
	if len(backends) == 1 {
		return backends[0]
	}
	return notification.NewMultiNotifier(backends...)
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[sigengine] starting signal engine service...")

	// ---- Restore engine book from snapshot ----
	if err := svc.restoreBook(ctx); err != nil {
		return err
	}
	svc.health.SetEngineOK(true)

	// ---- Build streams and consumer group ----
	svc.streams = svc.buildStreams(ctx)
	log.Printf("[sigengine] consuming from %d streams: %v", len(svc.streams), svc.streams)

	if len(svc.streams) > 0 {
		if err := svc.redisReader.EnsureConsumerGroup(ctx, svc.streams); err != nil {
			log.Printf("[sigengine] WARNING: consumer group setup: %v", err)
		}
	}

	// ---- Replay delta since snapshot ----
	svc.replayDelta(ctx)

	// ---- Recover pending messages from a previous crash ----
	if len(svc.streams) > 0 {
		reclaimed, err := svc.redisReader.RecoverPending(ctx, svc.streams, svc.rawBarCh)
		if err != nil {
			log.Printf("[sigengine] pending recovery error: %v", err)
		}
		if reclaimed > 0 {
			svc.prom.PELMessagesReclaimed.Add(float64(reclaimed))
			log.Printf("[sigengine] reclaimed %d pending bars", reclaimed)
		}
	}

	// ---- Start subsystems ----
	svc.buffered = redisstore.NewBufferedWriter(ctx, svc.redisWriter, svc.breaker, 10000)
	svc.buffered.OnBuffer = func() { svc.prom.RedisBufferedWrites.Inc() }

	if svc.sqlWriter != nil {
		go svc.sqlWriter.Run(ctx, svc.sqlBarCh)
	}
	svc.startEventFanout(ctx)
	go svc.fillRing(ctx)
	go svc.processLoop(ctx)
	if svc.cfg.ReplaySpeed >= 0 {
		svc.startReplay(ctx)
	} else {
		svc.startConsumer(ctx)
	}
	go svc.snapshotLoop(ctx)
	svc.startGateway(ctx)
	svc.startProfileSubscriber(ctx)
	svc.promSrv.Start()
	svc.health.StartLivenessChecker(ctx, svc.redisWriter.Client(), svc.sqliteDB(), 10*time.Second)

	// ---- Startup banner ----
	log.Println("[sigengine] ╔════════════════════════════════════════════════════════╗")
	log.Println("[sigengine] ║  Signal Engine Active                                  ║")
	log.Println("[sigengine] ║                                                        ║")
	log.Println("[sigengine] ║  [Redis Streams] → [Engine Book] → [Events Fan-out]    ║")
	log.Printf("[sigengine] ║  Symbols: %-44v ║", svc.symbols)
	log.Printf("[sigengine] ║  Personality: %-24s snapshot %4ds  ║", svc.advisor.Profile(), svc.cfg.SnapshotIntervalSec)
	log.Println("[sigengine] ╚════════════════════════════════════════════════════════╝")
	log.Println("[sigengine] ✅ all systems running. Press Ctrl+C to stop.")

	<-ctx.Done()
	svc.shutdown()
	return nil
}

// shutdown saves a final snapshot and closes connections.
func (svc *Service) shutdown() {
	log.Println("[sigengine] shutdown signal received, saving final snapshot...")

	if n := svc.ring.Overflow(); n > 0 {
		log.Printf("[sigengine] ring buffer dropped %d bars during this run", n)
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()

	if data, err := svc.book.SnapshotJSON(streamIDNow()); err == nil {
		if err := svc.redisReader.WriteSnapshotJSON(shutCtx, snapshotKey, data); err != nil {
			log.Printf("[sigengine] final redis snapshot write error: %v", err)
		}
		if svc.sqlWriter != nil {
			if err := svc.sqlWriter.SaveSnapshotJSON(data); err != nil {
				log.Printf("[sigengine] final sqlite snapshot write error: %v", err)
			}
		}
		log.Println("[sigengine] final snapshot saved")
	}

	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	svc.promSrv.Stop(shutCtx)
	svc.redisWriter.Close()
	svc.redisReader.Close()

	log.Println("[sigengine] shutdown complete.")
}

// restoreBook restores the engine book from the Redis snapshot, falling
// back to the latest SQLite snapshot, then a cold start.
func (svc *Service) restoreBook(ctx context.Context) error {
	engCfg := svc.cfg.EngineConfig()

	data, err := svc.redisReader.ReadSnapshotJSON(ctx, snapshotKey)
	if err != nil {
		log.Printf("[sigengine] redis snapshot read error: %v", err)
	}
	if data == nil && svc.sqlReader != nil {
		data, err = svc.sqlReader.ReadLatestSnapshotJSON()
		if err != nil {
			log.Printf("[sigengine] sqlite snapshot read error: %v", err)
		}
	}

	if data == nil {
		svc.book, err = engine.NewBook(engCfg)
		if err != nil {
			return err
		}
		log.Println("[sigengine] cold start (no snapshot found)")
		return nil
	}

	book, streamID, err := engine.RestoreBook(engCfg, data)
	if err != nil {
		log.Printf("[sigengine] snapshot restore failed: %v (cold start)", err)
		svc.book, err = engine.NewBook(engCfg)
		return err
	}
	svc.book = book
	svc.lastStream = streamID
	svc.prom.SnapshotRestores.Inc()
	svc.prom.EnginesActive.Set(float64(len(book.Symbols())))
	log.Printf("[sigengine] restored %d engines from snapshot (stream ID %s)", len(book.Symbols()), streamID)
	return nil
}

// buildStreams constructs the bar stream names to consume.
func (svc *Service) buildStreams(ctx context.Context) []string {
	if len(svc.symbols) > 0 {
		streams := make([]string, 0, len(svc.symbols))
		for _, sym := range svc.symbols {
			streams = append(streams, "bars:"+sym)
		}
		return streams
	}
	return svc.redisReader.DiscoverBarStreams(ctx, nil)
}

// replayDelta replays bars appended since the snapshot's stream marker
// so a restart does not miss closed bars.
func (svc *Service) replayDelta(ctx context.Context) {
	if svc.lastStream == "" {
		return
	}

	log.Printf("[sigengine] replaying delta from stream ID: %s", svc.lastStream)
	replayCh := make(chan model.Bar, 5000)
	go func() {
		for _, stream := range svc.streams {
			if _, err := svc.redisReader.ReplayFromID(ctx, stream, svc.lastStream, replayCh); err != nil {
				log.Printf("[sigengine] replay error on %s: %v", stream, err)
			}
		}
		close(replayCh)
	}()

	deltaCount := 0
	for bar := range replayCh {
		events, err := svc.book.Ingest(bar)
		if err != nil {
			continue
		}
		if len(events) > 0 {
			svc.redisWriter.WriteEvents(ctx, events)
		}
		deltaCount++
	}
	if deltaCount > 0 {
		log.Printf("[sigengine] ✅ replayed %d delta bars", deltaCount)
	}
}

func (svc *Service) sqliteDB() *sql.DB {
	if svc.sqlWriter == nil {
		return nil
	}
	return svc.sqlWriter.DB()
}

func streamIDNow() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-0"
}
