package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsFirstAttempt(t *testing.T) {
	l := NewAttemptLimiter(24 * time.Hour)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestLimiterExpiresAfterWindow(t *testing.T) {
	l := NewAttemptLimiter(24 * time.Hour)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))

	l.now = func() time.Time { return now.Add(23 * time.Hour) }
	assert.False(t, l.Allow("10.0.0.1"))

	l.now = func() time.Time { return now.Add(25 * time.Hour) }
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestLimiterSweepEvictsExpired(t *testing.T) {
	l := NewAttemptLimiter(time.Hour)
	now := time.Now()
	l.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		l.Allow(id)
	}

	l.now = func() time.Time { return now.Add(2 * time.Hour) }
	l.Allow("d") // triggers the sweep

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.seen, 1)
}

func TestLimiterReset(t *testing.T) {
	l := NewAttemptLimiter(24 * time.Hour)
	assert.True(t, l.Allow("10.0.0.1"))
	l.Reset()
	assert.True(t, l.Allow("10.0.0.1"))
}
