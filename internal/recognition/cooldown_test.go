package recognition

import (
	"testing"
	"time"
)

type fakeScanner struct {
	seen  map[string]time.Time
	since time.Time
}

func (f *fakeScanner) LastSeen(since time.Time) (map[string]time.Time, error) {
	f.since = since
	out := make(map[string]time.Time)
	for id, t := range f.seen {
		if !t.Before(since) {
			out[id] = t
		}
	}
	return out, nil
}

func TestIsSuppressedBoundary(t *testing.T) {
	window := time.Hour
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	l := NewCooldownLedger()
	l.Record("s1", t0)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after", t0, true},
		{"just inside", t0.Add(window - time.Second), true},
		{"exactly at window", t0.Add(window), false},
		{"just past", t0.Add(window + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.IsSuppressed("s1", tt.now, window); got != tt.want {
				t.Fatalf("IsSuppressed at %v = %v, want %v", tt.now, got, tt.want)
			}
		})
	}

	if l.IsSuppressed("unknown", t0, window) {
		t.Fatal("unknown identity suppressed")
	}
}

func TestWindowReinterpretedPerCall(t *testing.T) {
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	l := NewCooldownLedger()
	l.Record("s1", t0)

	now := t0.Add(30 * time.Minute)
	if !l.IsSuppressed("s1", now, time.Hour) {
		t.Fatal("inside 1h window, want suppressed")
	}
	// Operator shrinks the window; the same entry immediately falls out.
	if l.IsSuppressed("s1", now, 10*time.Minute) {
		t.Fatal("outside 10m window, want not suppressed")
	}
}

func TestRecordNeverMovesBackward(t *testing.T) {
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	l := NewCooldownLedger()
	l.Record("s1", t0)
	l.Record("s1", t0.Add(-time.Hour))

	if got := l.Entries()["s1"]; !got.Equal(t0) {
		t.Fatalf("entry moved backward to %v", got)
	}
}

func TestForget(t *testing.T) {
	t0 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	l := NewCooldownLedger()
	l.Record("s1", t0)
	l.Forget("s1")
	if l.IsSuppressed("s1", t0, time.Hour) {
		t.Fatal("forgotten identity still suppressed")
	}
}

func TestBootstrapLookback(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   time.Duration
	}{
		{time.Hour, 24 * time.Hour},          // floor dominates
		{22 * time.Hour, 24 * time.Hour},     // 22h+2h hits the floor exactly
		{24 * time.Hour, 26 * time.Hour},     // window + margin
		{72 * time.Hour, 74 * time.Hour},
	}
	for _, tt := range tests {
		if got := BootstrapLookback(tt.window); got != tt.want {
			t.Errorf("BootstrapLookback(%v) = %v, want %v", tt.window, got, tt.want)
		}
	}
}

func TestRebuildMatchesLiveLedger(t *testing.T) {
	window := time.Hour
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	scanner := &fakeScanner{seen: map[string]time.Time{
		"recent":  now.Add(-30 * time.Minute),
		"expired": now.Add(-2 * time.Hour),
		"ancient": now.Add(-48 * time.Hour),
	}}

	l, err := RebuildCooldownLedger(scanner, now, window)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if want := now.Add(-BootstrapLookback(window)); !scanner.since.Equal(want) {
		t.Fatalf("scan horizon %v, want %v", scanner.since, want)
	}

	if !l.IsSuppressed("recent", now, window) {
		t.Fatal("recent sighting not suppressed after rebuild")
	}
	// In the ledger (inside the lookback) but outside the window.
	if l.IsSuppressed("expired", now, window) {
		t.Fatal("expired sighting suppressed after rebuild")
	}
	if l.IsSuppressed("ancient", now, window) {
		t.Fatal("ancient sighting suppressed after rebuild")
	}
}
