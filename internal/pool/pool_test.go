package pool

import (
	"testing"
)

func TestAcquireReleaseReusesBuffer(t *testing.T) {
	tp := NewTablePool()
	b1 := tp.Acquire(16)
	copy(b1.Bytes, []byte("0123456789abcdef"))
	b1.Release()

	b2 := tp.Acquire(16)
	if cap(b2.Bytes) < 16 {
		t.Fatalf("expected reused buffer with capacity >= 16, got %d", cap(b2.Bytes))
	}
}

func TestAcquireGrowsUndersizedBuffer(t *testing.T) {
	tp := NewTablePool()
	b1 := tp.Acquire(4)
	b1.Release()

	b2 := tp.Acquire(64)
	if len(b2.Bytes) != 64 {
		t.Fatalf("expected grown buffer of length 64, got %d", len(b2.Bytes))
	}
}

func TestAcquireRoundRobinsAcrossSlots(t *testing.T) {
	tp := NewTablePool()
	a := tp.Acquire(8)
	b := tp.Acquire(8)
	if a.slot == b.slot {
		t.Fatalf("expected consecutive acquires to land on different slots, both got %d", a.slot)
	}
}

func TestReleaseOnUnownedBufferIsNoop(t *testing.T) {
	b := &ValueBuf{Bytes: make([]byte, 4)}
	b.Release()
}

func TestManagerForReturnsSameInstancePerTable(t *testing.T) {
	m := NewManager()
	p1 := m.For("users")
	p2 := m.For("users")
	if p1 != p2 {
		t.Fatalf("expected the same TablePool instance for repeated calls with the same table name")
	}
	p3 := m.For("orders")
	if p3 == p1 {
		t.Fatalf("expected a distinct TablePool for a different table name")
	}
}
