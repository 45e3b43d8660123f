package queue

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle recipient entry survives before Sweep
// removes it.
const staleAfter = 10 * time.Minute

// Limiter enforces a minimum spacing between deliveries to the same
// recipient. Each recipient gets its own token bucket with one token per
// spacing interval; entries for recipients that have gone quiet are evicted
// by Sweep so the map does not grow with every chat ever alerted.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	every time.Duration

	mu      sync.Mutex
	entries map[int64]*limiterEntry

	now func() time.Time // injectable for tests
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a Limiter with the given per-recipient spacing.
// A non-positive spacing disables limiting; Reserve always returns zero.
func NewLimiter(every time.Duration) *Limiter {
	return &Limiter{
		every:   every,
		entries: make(map[int64]*limiterEntry),
		now:     time.Now,
	}
}

// Reserve claims the next delivery slot for recipient and returns how long
// the caller must wait before sending. The slot is consumed immediately, so
// two concurrent reservations for the same recipient get distinct slots.
func (l *Limiter) Reserve(recipient int64) time.Duration {
	if l.every <= 0 {
		return 0
	}

	l.mu.Lock()
	e, ok := l.entries[recipient]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(l.every), 1)}
		l.entries[recipient] = e
	}
	e.lastSeen = l.now()
	l.mu.Unlock()

	return e.lim.Reserve().Delay()
}

// Sweep drops entries not reserved since the stale cutoff. Returns the number
// of entries removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAfter)
	removed := 0
	for id, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}
