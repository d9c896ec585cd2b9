package pool

import (
	"sync"
	"time"
)

// AttemptLimiter is the outer load-bounding layer: at most one attempted
// click per identity per window, tracked in process memory. It is separate
// from the store-backed duplicate check and intentionally redundant with
// it; both layers are preserved and tested independently.
type AttemptLimiter struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	window  time.Duration
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

// NewAttemptLimiter creates a limiter with the given window.
func NewAttemptLimiter(window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		seen:    make(map[string]time.Time),
		window:  window,
		now:     time.Now,
		gcEvery: time.Hour,
	}
}

// Allow records an attempt for identity and reports whether it is the first
// within the window. Expired entries are swept opportunistically.
func (l *AttemptLimiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	if at, ok := l.seen[identity]; ok && now.Sub(at) < l.window {
		return false
	}
	l.seen[identity] = now
	return true
}

func (l *AttemptLimiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastGC) < l.gcEvery {
		return
	}
	l.lastGC = now
	for id, at := range l.seen {
		if now.Sub(at) >= l.window {
			delete(l.seen, id)
		}
	}
}

// Reset clears all tracked attempts. Used by the admin reset flow so a
// zeroed pool accepts clicks from everyone again.
func (l *AttemptLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]time.Time)
}
