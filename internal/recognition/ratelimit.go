package recognition

import (
	"sync"
	"time"
)

// Limiter paces sample captures: Allow returns true at most once per
// interval, counted from the last Mark. The attendance and enrollment
// paths each own a Limiter so their pacing never interferes.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Allow reports whether a capture may fire at now.
func (l *Limiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last.IsZero() || now.Sub(l.last) >= l.interval
}

// Mark records that a capture fired at now.
func (l *Limiter) Mark(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = now
}

// SetInterval changes the pacing interval; takes effect immediately.
func (l *Limiter) SetInterval(interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = interval
}

// Reset clears the last-fire timestamp so the next Allow succeeds.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Time{}
}
