package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mag-systemv1/config"
	"mag-systemv1/internal/logger"
	"mag-systemv1/internal/sigengine"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	slg := logger.Init("sigengine", slog.LevelInfo)
	slg.Info("booting",
		slog.Any("symbols", cfg.ParseSymbols()),
		slog.String("personality", cfg.Personality),
		slog.Int("snapshot_interval_sec", cfg.SnapshotIntervalSec),
		slog.Float64("replay_speed", cfg.ReplaySpeed),
	)

	svc, err := sigengine.New(cfg)
	if err != nil {
		log.Fatalf("[sigengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[sigengine] fatal: %v", err)
	}
	slg.Info("stopped")
}
