package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"mag-systemv1/internal/indicator"
	"mag-systemv1/internal/model"
)

// engineState is the full serialized state of one symbol's engine.
type engineState struct {
	Symbol string `json:"symbol"`
	Config Config `json:"config"`

	Basis        indicator.StateSnapshot `json:"basis"`
	Trend        trendState              `json:"trend"`
	BottomStruct structureState          `json:"bottom_struct"`
	TopStruct    structureState          `json:"top_struct"`
	BottomCorr   correctionState         `json:"bottom_corr"`
	TopCorr      correctionState         `json:"top_corr"`
	Gate         tempModeState           `json:"gate"`
	Position     positionState           `json:"position"`

	Snap    model.IndicatorSnapshot `json:"snap"`
	LastTS  int64                   `json:"last_ts"` // unix nanos
	HasLast bool                    `json:"has_last"`
	Bars    int                     `json:"bars"`
}

// BookSnapshot is the persisted state of every engine in a Book, plus
// the stream position it was taken at.
type BookSnapshot struct {
	StreamID string        `json:"stream_id"` // Redis stream ID at checkpoint time
	Engines  []engineState `json:"engines"`
	Version  int           `json:"version"` // schema version for forward compat
}

func (e *Engine) snapshotState() engineState {
	return engineState{
		Symbol:       e.symbol,
		Config:       e.cfg,
		Basis:        e.basis.Snapshot(),
		Trend:        e.trend.snapshot(),
		BottomStruct: e.bottomS.snapshot(),
		TopStruct:    e.topS.snapshot(),
		BottomCorr:   e.bottomC.snapshot(),
		TopCorr:      e.topC.snapshot(),
		Gate:         e.gate.snapshot(),
		Position:     e.resolver.snapshot(),
		Snap:         e.snap,
		LastTS:       e.lastTS.UnixNano(),
		HasLast:      e.hasLast,
		Bars:         e.bars,
	}
}

func restoreEngine(s engineState) (*Engine, error) {
	e, err := New(s.Symbol, s.Config)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", s.Symbol, err)
	}
	if err := e.basis.RestoreFromSnapshot(s.Basis); err != nil {
		return nil, fmt.Errorf("restore %s basis: %w", s.Symbol, err)
	}
	e.trend.restore(s.Trend)
	e.bottomS.restore(s.BottomStruct)
	e.topS.restore(s.TopStruct)
	e.bottomC.restore(s.BottomCorr)
	e.topC.restore(s.TopCorr)
	e.gate.restore(s.Gate)
	e.resolver.restore(s.Position)
	e.snap = s.Snap
	e.lastTS = time.Unix(0, s.LastTS)
	e.hasLast = s.HasLast
	e.bars = s.Bars
	return e, nil
}

// SnapshotJSON serializes the whole book for checkpoint persistence.
func (b *Book) SnapshotJSON(streamID string) ([]byte, error) {
	snap := BookSnapshot{StreamID: streamID, Version: 1}
	for _, sym := range b.symbolsInOrder() {
		snap.Engines = append(snap.Engines, b.engines[sym].snapshotState())
	}
	return json.Marshal(&snap)
}

// RestoreBook rebuilds a Book from a checkpoint. The stored per-symbol
// configs win over cfg for restored symbols; cfg applies to symbols
// first seen after the restore.
func RestoreBook(cfg Config, data []byte) (*Book, string, error) {
	var snap BookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, "", fmt.Errorf("decode book snapshot: %w", err)
	}
	book, err := NewBook(cfg)
	if err != nil {
		return nil, "", err
	}
	for _, es := range snap.Engines {
		eng, err := restoreEngine(es)
		if err != nil {
			return nil, "", err
		}
		book.engines[es.Symbol] = eng
	}
	return book, snap.StreamID, nil
}
