package ratelimit

import "testing"

func TestLimitAllowsBurstThenThrottles(t *testing.T) {
	l := New(1, 2)
	first := l.Limit("tenant-a")
	second := l.Limit("tenant-a")
	if !first.Success || !second.Success {
		t.Fatalf("expected burst of 2 to succeed: %+v %+v", first, second)
	}
	third := l.Limit("tenant-a")
	if third.Success {
		t.Error("expected third request within the same instant to be throttled")
	}
}

func TestLimitIsPerKey(t *testing.T) {
	l := New(1, 1)
	a := l.Limit("tenant-a")
	b := l.Limit("tenant-b")
	if !a.Success || !b.Success {
		t.Errorf("expected independent buckets per key: %+v %+v", a, b)
	}
}
