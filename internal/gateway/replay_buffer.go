package gateway

import "sync"

// replayEntry is one retained broadcast frame keyed by channel_seq.
type replayEntry struct {
	Seq  int64
	Data []byte // finished envelope bytes, ready to send as-is
}

// ReplayBuffer retains the most recent envelopes broadcast on a single
// channel so clients that detect a channel_seq gap can backfill bars or
// events over /api/missed instead of reconnecting cold.
//
// Safe for concurrent use.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []replayEntry
	write   int  // slot the next Push lands in
	wrapped bool // true once the oldest entry has been overwritten
}

// NewReplayBuffer builds a buffer holding the last `capacity` frames.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{entries: make([]replayEntry, capacity)}
}

// Push retains an envelope, evicting the oldest frame when full. The
// bytes are copied since broadcasters reuse their scratch buffers.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)

	rb.mu.Lock()
	rb.entries[rb.write] = replayEntry{Seq: seq, Data: frame}
	rb.write++
	if rb.write == len(rb.entries) {
		rb.write = 0
		rb.wrapped = true
	}
	rb.mu.Unlock()
}

// Range returns retained entries with Seq in [fromSeq, toSeq], oldest
// first. Frames already evicted are silently absent.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []replayEntry
	n := rb.size()
	start := 0
	if rb.wrapped {
		start = rb.write
	}
	for i := 0; i < n; i++ {
		e := rb.entries[(start+i)%len(rb.entries)]
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out
}

// Len reports how many frames are currently retained.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size()
}

func (rb *ReplayBuffer) size() int {
	if rb.wrapped {
		return len(rb.entries)
	}
	return rb.write
}
