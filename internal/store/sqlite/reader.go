package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"mag-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for backfill, replay and
// backtests.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads bars for a symbol with ts strictly after afterTS.
// Results are ordered by timestamp ascending for correct replay order.
func (r *Reader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close
		FROM bars
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Symbols lists the distinct symbols present in the bars table.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var syms []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		syms = append(syms, s)
	}
	return syms, rows.Err()
}

// ReadEvents reads stored events for a symbol with ts strictly after
// afterTS, ordered by insertion.
func (r *Reader) ReadEvents(symbol string, afterTS int64) ([]model.Event, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, type, side, from_trend, to_trend, old_target, new_target, reason
		FROM events
		WHERE symbol = ? AND ts > ?
		ORDER BY id ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var tsUnix int64
		var typ, side, from, to string
		if err := rows.Scan(&ev.Symbol, &tsUnix, &typ, &side, &from, &to,
			&ev.OldTarget, &ev.NewTarget, &ev.Reason); err != nil {
			return nil, fmt.Errorf("sqlite scan events: %w", err)
		}
		ev.TS = time.Unix(tsUnix, 0).UTC()
		ev.Type = model.EventType(typ)
		ev.Side = model.Side(side)
		ev.From = model.Trend(from)
		ev.To = model.Trend(to)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ReadLatestSnapshotJSON loads the most recent engine snapshot as raw
// JSON. Returns nil, nil if no snapshot exists.
func (r *Reader) ReadLatestSnapshotJSON() ([]byte, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM engine_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}
	return []byte(data), nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
