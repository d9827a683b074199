package recognition

import (
	"sync"
	"time"
)

// bootstrapFloor and bootstrapMargin size the attendance-log scan that
// seeds the ledger: the lookback must strictly exceed any cooldown
// window the operator can configure at the time of the scan.
const (
	bootstrapFloor  = 24 * time.Hour
	bootstrapMargin = 2 * time.Hour
)

// LastSeenScanner yields, per identity, the latest recorded event
// timestamp at or after since. Implemented by store.AttendanceLog.
type LastSeenScanner interface {
	LastSeen(since time.Time) (map[string]time.Time, error)
}

// CooldownLedger tracks the most recent recorded attendance event per
// identity. Derived state: it is always reconstructible from the
// attendance log, and entries only ever move forward in time while the
// process runs.
type CooldownLedger struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldownLedger() *CooldownLedger {
	return &CooldownLedger{last: make(map[string]time.Time)}
}

// BootstrapLookback returns the log-scan horizon for a configured
// cooldown window: max(24h, window + 2h).
func BootstrapLookback(window time.Duration) time.Duration {
	if lb := window + bootstrapMargin; lb > bootstrapFloor {
		return lb
	}
	return bootstrapFloor
}

// RebuildCooldownLedger seeds a fresh ledger from the attendance log,
// scanning BootstrapLookback(window) behind now. This is how cooldown
// state survives restarts without a persisted ledger file.
func RebuildCooldownLedger(scanner LastSeenScanner, now time.Time, window time.Duration) (*CooldownLedger, error) {
	seen, err := scanner.LastSeen(now.Add(-BootstrapLookback(window)))
	if err != nil {
		return nil, err
	}
	l := NewCooldownLedger()
	for id, t := range seen {
		l.last[id] = t
	}
	return l, nil
}

// IsSuppressed reports whether a recognition of id at now falls inside
// the cooldown window of its last recorded event. The window is passed
// per call: operators may change it at any time, and existing entries
// are simply reinterpreted under the new window.
func (l *CooldownLedger) IsSuppressed(id string, now time.Time, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.last[id]
	if !ok {
		return false
	}
	return now.Sub(t) < window
}

// Record advances the identity's entry to now. Entries never move
// backward; a stale now (clock skew, replay) is ignored.
func (l *CooldownLedger) Record(id string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.last[id]; ok && cur.After(now) {
		return
	}
	l.last[id] = now
}

// Forget drops the identity's entry; called when the identity is
// deleted along with its log rows.
func (l *CooldownLedger) Forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, id)
}

// Entries returns a copy of the ledger state.
func (l *CooldownLedger) Entries() map[string]time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]time.Time, len(l.last))
	for id, t := range l.last {
		out[id] = t
	}
	return out
}
