package gateway

import (
	"fmt"
	"testing"
)

func TestReplayBuffer_RangeIsInclusive(t *testing.T) {
	rb := NewReplayBuffer(64)
	for seq := int64(1); seq <= 10; seq++ {
		rb.Push(seq, []byte(fmt.Sprintf(`{"seq":%d}`, seq)))
	}

	got := rb.Range(3, 7)
	if len(got) != 5 {
		t.Fatalf("Range(3,7) returned %d entries, want 5", len(got))
	}
	for i, e := range got {
		if want := int64(3 + i); e.Seq != want {
			t.Errorf("entry %d: Seq = %d, want %d", i, e.Seq, want)
		}
	}
	if string(got[0].Data) != `{"seq":3}` {
		t.Errorf("entry 0 data = %q", got[0].Data)
	}
}

func TestReplayBuffer_EvictsOldestFrames(t *testing.T) {
	rb := NewReplayBuffer(5)
	for seq := int64(1); seq <= 8; seq++ {
		rb.Push(seq, []byte("frame"))
	}

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}

	got := rb.Range(1, 100)
	if len(got) != 5 {
		t.Fatalf("Range returned %d entries, want 5", len(got))
	}
	if got[0].Seq != 4 || got[len(got)-1].Seq != 8 {
		t.Errorf("retained seqs %d..%d, want 4..8", got[0].Seq, got[len(got)-1].Seq)
	}
}

func TestReplayBuffer_EmptyRange(t *testing.T) {
	rb := NewReplayBuffer(10)
	if got := rb.Range(1, 100); len(got) != 0 {
		t.Fatalf("Range on empty buffer returned %d entries", len(got))
	}
	if rb.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", rb.Len())
	}
}

func TestReplayBuffer_CopiesPushedBytes(t *testing.T) {
	rb := NewReplayBuffer(4)
	scratch := []byte(`{"seq":1}`)
	rb.Push(1, scratch)
	scratch[0] = 'X'

	got := rb.Range(1, 1)
	if len(got) != 1 {
		t.Fatalf("Range returned %d entries, want 1", len(got))
	}
	if string(got[0].Data) != `{"seq":1}` {
		t.Errorf("stored frame mutated: %q", got[0].Data)
	}
}
