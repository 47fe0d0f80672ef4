package rate

import (
	"testing"
	"time"
)

func TestGateSpacing(t *testing.T) {
	g := NewGate(500 * time.Millisecond)
	base := time.Unix(1000, 0)

	if !g.Allow(base) {
		t.Fatal("first event should pass")
	}
	if g.Allow(base.Add(499 * time.Millisecond)) {
		t.Fatal("event inside spacing should be rejected")
	}
	if !g.Allow(base.Add(500 * time.Millisecond)) {
		t.Fatal("event at spacing boundary should pass")
	}
	if g.Allow(base.Add(700 * time.Millisecond)) {
		t.Fatal("second event inside new window should be rejected")
	}
}

func TestGateZeroSpacingAdmitsAll(t *testing.T) {
	g := NewGate(0)
	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		if !g.Allow(now) {
			t.Fatalf("event %d rejected", i)
		}
	}
}
