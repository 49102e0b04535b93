package sigengine

import (
	"context"
	"log"
	"time"
)

// snapshotLoop periodically saves the engine book state to Redis and
// SQLite so a restart resumes with trend, structure and position state
// intact.
func (svc *Service) snapshotLoop(ctx context.Context) {
	if svc.cfg.SnapshotIntervalSec <= 0 {
		log.Println("[sigengine] periodic snapshots disabled")
		return
	}

	ticker := time.NewTicker(time.Duration(svc.cfg.SnapshotIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := svc.book.SnapshotJSON(streamIDNow())
			if err != nil {
				log.Printf("[sigengine] snapshot error: %v", err)
				continue
			}

			if err := svc.redisReader.WriteSnapshotJSON(ctx, snapshotKey, data); err != nil {
				log.Printf("[sigengine] redis snapshot write error: %v", err)
			}
			if svc.sqlWriter != nil {
				if err := svc.sqlWriter.SaveSnapshotJSON(data); err != nil {
					log.Printf("[sigengine] sqlite snapshot write error: %v", err)
				}
			}

			svc.prom.SnapshotsSaved.Inc()
			log.Printf("[sigengine] ✅ checkpoint saved (%d engines)", len(svc.book.Symbols()))
		}
	}
}
