package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalRateLimiter_WindowAndSweep(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	l := newLocalRateLimiter(func() time.Time { return now })

	allowed, _ := l.allow("ana", 1, time.Minute)
	assert.True(t, allowed)
	l.allow("bruno", 1, time.Minute)

	now = now.Add(15 * time.Second)
	allowed, retryAfter := l.allow("ana", 1, time.Minute)
	assert.False(t, allowed)
	assert.Equal(t, 45*time.Second, retryAfter)

	// Once a full window has passed, expired keys are dropped.
	now = now.Add(2 * time.Minute)
	allowed, _ = l.allow("carla", 1, time.Minute)
	assert.True(t, allowed)
	assert.Len(t, l.states, 1)
	assert.Contains(t, l.states, "carla")
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 40, retryAfterSeconds(40*time.Second))
	assert.Equal(t, 41, retryAfterSeconds(40*time.Second+time.Millisecond))
}
