package gateway

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

// buildEnvelope reproduces the exact hand-crafted JSON logic from Broadcaster.Broadcast
// so we can test envelope format independently of Redis/WS dependencies.
func buildEnvelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+128)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// envelope is the parsed WS message structure.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	TS      string          `json:"ts"`
	Seq     int64           `json:"seq"`
}

// TestBroadcastEnvelopeFormat verifies the hand-crafted JSON envelope
// matches the expected structure: {"channel":"...","data":...,"ts":"...","seq":N}
func TestBroadcastEnvelopeFormat(t *testing.T) {
	channel := "pub:bar:BTCUSDT"
	data := []byte(`{"ts":"2026-02-25T10:00:00Z","open":100,"high":105,"low":99,"close":103}`)
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)
	var seq int64 = 42

	buf := buildEnvelope(channel, data, now, seq)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}

	if env.Channel != channel {
		t.Errorf("channel: got %q, want %q", env.Channel, channel)
	}
	if env.Seq != seq {
		t.Errorf("seq: got %d, want %d", env.Seq, seq)
	}

	// Data should be parseable JSON
	var bar map[string]interface{}
	if err := json.Unmarshal(env.Data, &bar); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if _, ok := bar["ts"]; !ok {
		t.Error("data missing 'ts' field")
	}

	// TS should be valid RFC3339Nano
	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil {
		t.Errorf("ts is not valid RFC3339Nano: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("ts: got %v, want %v", parsed, now)
	}
}

// TestBroadcastEnvelopeEvent tests envelope with an event channel payload.
func TestBroadcastEnvelopeEvent(t *testing.T) {
	channel := "pub:events:BTCUSDT"
	data := []byte(`{"type":"POSITION_CHANGED","old_target":0,"new_target":60,"reason":"trend-up"}`)
	now := time.Now().UTC()

	buf := buildEnvelope(channel, data, now, 1)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}

	if env.Channel != channel {
		t.Errorf("channel: got %q, want %q", env.Channel, channel)
	}

	var ev struct {
		Type      string  `json:"type"`
		NewTarget float64 `json:"new_target"`
		Reason    string  `json:"reason"`
	}
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if ev.Type != "POSITION_CHANGED" {
		t.Errorf("event type: got %q, want POSITION_CHANGED", ev.Type)
	}
	if ev.NewTarget != 60 {
		t.Errorf("new_target: got %f, want 60", ev.NewTarget)
	}
}

// TestBroadcastEnvelopeNestedData tests envelope with nested/complex data payload.
func TestBroadcastEnvelopeNestedData(t *testing.T) {
	channel := "pub:position:BTCUSDT"
	data := []byte(`{"note":"test","nested":{"a":1},"arr":[1,2,3]}`)

	buf := buildEnvelope(channel, data, time.Now().UTC(), 999)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Seq != 999 {
		t.Errorf("seq: got %d, want 999", env.Seq)
	}
}

// TestChannelParsing tests the parseChannel function with various formats.
func TestChannelParsing(t *testing.T) {
	tests := []struct {
		name       string
		channel    string
		wantType   string
		wantSymbol string
		wantNil    bool
	}{
		{"bar", "pub:bar:BTCUSDT", "bar", "BTCUSDT", false},
		{"events", "pub:events:ETHUSDT", "events", "ETHUSDT", false},
		{"position", "pub:position:BTCUSDT", "position", "BTCUSDT", false},
		{"exchange_qualified", "pub:bar:NSE:RELIANCE", "bar", "NSE:RELIANCE", false},
		{"metrics_channel", "pub:metrics:sys", "", "", true},
		{"invalid_garbage", "garbage", "", "", true},
		{"invalid_short", "pub:bar", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parseChannel(tt.channel)
			if tt.wantNil {
				if parsed != nil {
					t.Errorf("expected nil, got %+v", parsed)
				}
				return
			}
			if parsed == nil {
				t.Fatal("expected non-nil parsed channel")
			}
			if parsed.chType != tt.wantType {
				t.Errorf("chType: got %q, want %q", parsed.chType, tt.wantType)
			}
			if parsed.symbol != tt.wantSymbol {
				t.Errorf("symbol: got %q, want %q", parsed.symbol, tt.wantSymbol)
			}
		})
	}
}

// TestEnvelopeSeqMonotonic verifies sequence numbers are reflected correctly.
func TestEnvelopeSeqMonotonic(t *testing.T) {
	channel := "pub:bar:BTCUSDT"
	data := []byte(`{}`)
	now := time.Now().UTC()

	for i := int64(1); i <= 100; i++ {
		buf := buildEnvelope(channel, data, now, i)
		var env envelope
		if err := json.Unmarshal(buf, &env); err != nil {
			t.Fatalf("seq=%d: invalid JSON: %v", i, err)
		}
		if env.Seq != i {
			t.Errorf("seq: got %d, want %d", env.Seq, i)
		}
	}
}

// envelopeWithChannelSeq is the parsed WS message structure including channel_seq.
type envelopeWithChannelSeq struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
}

// buildEnvelopeWithChannelSeq reproduces the full envelope format from Broadcaster.Broadcast
// including the per-channel seq field.
func buildEnvelopeWithChannelSeq(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// TestBroadcaster_PerChannelSeq verifies that per-channel seq is included in the
// envelope and tracks independently across channels.
func TestBroadcaster_PerChannelSeq(t *testing.T) {
	channelA := "pub:bar:BTCUSDT"
	channelB := "pub:events:BTCUSDT"
	data := []byte(`{}`)
	now := time.Now().UTC()

	var globalSeq int64

	for i := int64(1); i <= 3; i++ {
		globalSeq++
		buf := buildEnvelopeWithChannelSeq(channelA, data, now, globalSeq, i)
		var env envelopeWithChannelSeq
		if err := json.Unmarshal(buf, &env); err != nil {
			t.Fatalf("channelA seq=%d: invalid JSON: %v", i, err)
		}
		if env.ChannelSeq != i {
			t.Errorf("channelA channel_seq: got %d, want %d", env.ChannelSeq, i)
		}
		if env.Seq != globalSeq {
			t.Errorf("channelA global seq: got %d, want %d", env.Seq, globalSeq)
		}
	}

	for i := int64(1); i <= 2; i++ {
		globalSeq++
		buf := buildEnvelopeWithChannelSeq(channelB, data, now, globalSeq, i)
		var env envelopeWithChannelSeq
		if err := json.Unmarshal(buf, &env); err != nil {
			t.Fatalf("channelB seq=%d: invalid JSON: %v", i, err)
		}
		if env.ChannelSeq != i {
			t.Errorf("channelB channel_seq: got %d, want %d", env.ChannelSeq, i)
		}
		if env.Channel != channelB {
			t.Errorf("channelB: got %q, want %q", env.Channel, channelB)
		}
	}

	if globalSeq != 5 {
		t.Errorf("global seq: got %d, want 5", globalSeq)
	}
}
