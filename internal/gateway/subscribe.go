package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	goredis "github.com/go-redis/redis/v8"
)

// ── WS Protocol Message Types ──

// SubscribeMsg is the client → server SUBSCRIBE request.
type SubscribeMsg struct {
	Type    string         `json:"type"`    // "SUBSCRIBE"
	ReqID   string         `json:"reqId"`   // client-generated request ID
	Symbol  string         `json:"symbol"`  // e.g. "BTCUSDT"
	History HistoryRequest `json:"history"` // how much history to include
}

// HistoryRequest specifies how much history the snapshot should carry.
type HistoryRequest struct {
	Bars   int `json:"bars"`
	Events int `json:"events"`
}

// UnsubscribeMsg is the client → server UNSUBSCRIBE request.
type UnsubscribeMsg struct {
	Type   string `json:"type"` // "UNSUBSCRIBE"
	ReqID  string `json:"reqId"`
	Symbol string `json:"symbol"`
}

// SnapshotResponse is the server → client SNAPSHOT with historical data.
type SnapshotResponse struct {
	Type     string            `json:"type"` // "SNAPSHOT"
	ReqID    string            `json:"reqId"`
	Symbol   string            `json:"symbol"`
	Bars     []json.RawMessage `json:"bars"`
	Events   []json.RawMessage `json:"events"`
	Position float64           `json:"position"`
}

// ErrorResponse is the server → client ERROR message.
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"reqId,omitempty"`
	Error string `json:"error"`
}

// ── Subscription State ──

// ClientSubscription holds per-symbol state for a client.
type ClientSubscription struct {
	Symbol string
}

// ── Redis History Fetching ──

// BuildSnapshotFromRedis reads historical bars + events + the live position
// target from Redis for a fresh subscriber.
func BuildSnapshotFromRedis(ctx context.Context, rdb *goredis.Client, sub *ClientSubscription, barLimit, eventLimit int) (*SnapshotResponse, error) {
	if barLimit <= 0 {
		barLimit = 500
	}
	if barLimit > 1000 {
		barLimit = 1000
	}
	if eventLimit <= 0 {
		eventLimit = 100
	}
	if eventLimit > 1000 {
		eventLimit = 1000
	}

	snap := &SnapshotResponse{
		Type:   "SNAPSHOT",
		Symbol: sub.Symbol,
		Bars:   make([]json.RawMessage, 0, barLimit),
		Events: make([]json.RawMessage, 0, eventLimit),
	}

	// 1. Closed bars from the Redis stream, chronological order
	barMsgs, err := rdb.XRevRangeN(ctx, "bars:"+sub.Symbol, "+", "-", int64(barLimit)).Result()
	if err != nil {
		log.Printf("[subscribe] bar stream read error for %s: %v", sub.Symbol, err)
	} else {
		for i, j := 0, len(barMsgs)-1; i < j; i, j = i+1, j-1 {
			barMsgs[i], barMsgs[j] = barMsgs[j], barMsgs[i]
		}
		for _, msg := range barMsgs {
			if dataStr, ok := msg.Values["data"].(string); ok {
				snap.Bars = append(snap.Bars, json.RawMessage(dataStr))
			}
		}
	}

	// 2. Recent signal events
	evMsgs, err := rdb.XRevRangeN(ctx, "events:"+sub.Symbol, "+", "-", int64(eventLimit)).Result()
	if err != nil {
		log.Printf("[subscribe] event stream read error for %s: %v", sub.Symbol, err)
	} else {
		for i, j := 0, len(evMsgs)-1; i < j; i, j = i+1, j-1 {
			evMsgs[i], evMsgs[j] = evMsgs[j], evMsgs[i]
		}
		for _, msg := range evMsgs {
			if dataStr, ok := msg.Values["data"].(string); ok {
				snap.Events = append(snap.Events, json.RawMessage(dataStr))
			}
		}
	}

	// 3. Current position target
	if val, err := rdb.Get(ctx, "position:"+sub.Symbol).Result(); err == nil {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			snap.Position = f
		}
	}

	return snap, nil
}

// SendJSON marshals and sends a message to the client's send channel.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[subscribe] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[subscribe] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}
