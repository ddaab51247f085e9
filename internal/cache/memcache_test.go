package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory(4)
	ctx := context.Background()

	if err := m.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	v, ok, err := m.Get(ctx, "a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("got %s %v %v", v, ok, err)
	}
}

func TestMemoryExpires(t *testing.T) {
	m := NewMemory(4)
	ctx := context.Background()
	_ = m.Set(ctx, "a", []byte("1"), -time.Second) // already expired
	_, ok, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected expired entry to be absent")
	}
}

func TestMemoryEvictsOldestOverCapacity(t *testing.T) {
	s := newShard(2)
	now := time.Now().Add(time.Minute)
	s.set("a", []byte("1"), now)
	s.set("b", []byte("2"), now)
	s.set("c", []byte("3"), now) // evicts "a", the least recently used

	if _, ok := s.get("a", time.Now()); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := s.get("b", time.Now()); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := s.get("c", time.Now()); !ok {
		t.Error("expected c to remain")
	}
}
