package recognition

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(2 * time.Second)

	if !l.Allow(t0) {
		t.Fatal("first frame refused")
	}
	l.Mark(t0)

	if l.Allow(t0.Add(time.Second)) {
		t.Fatal("frame inside the interval allowed")
	}
	if !l.Allow(t0.Add(2 * time.Second)) {
		t.Fatal("frame at the interval boundary refused")
	}
}

func TestLimiterSetInterval(t *testing.T) {
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(10 * time.Second)
	l.Mark(t0)

	if l.Allow(t0.Add(time.Second)) {
		t.Fatal("inside 10s interval allowed")
	}
	l.SetInterval(time.Second)
	if !l.Allow(t0.Add(time.Second)) {
		t.Fatal("new shorter interval not applied")
	}
}

func TestLimiterReset(t *testing.T) {
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(time.Minute)
	l.Mark(t0)
	l.Reset()
	if !l.Allow(t0.Add(time.Millisecond)) {
		t.Fatal("reset limiter still pacing")
	}
}
