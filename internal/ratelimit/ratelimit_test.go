package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := NewLimiter()

	assert.True(t, l.Allow("/svc", 1, 2))
	assert.True(t, l.Allow("/svc", 1, 2))
	assert.False(t, l.Allow("/svc", 1, 2)) // burst exhausted
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter()

	assert.True(t, l.Allow("/a", 0.001, 1))
	assert.False(t, l.Allow("/a", 0.001, 1))
	assert.True(t, l.Allow("/b", 0.001, 1))
}

func TestLimiter_ReloadUpdatesConfig(t *testing.T) {
	l := NewLimiter()

	assert.True(t, l.Allow("/svc", 0.001, 1))
	assert.False(t, l.Allow("/svc", 0.001, 1))

	// a reload raising the rate takes effect on the existing limiter
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow("/svc", 1000, 100))
}

func TestLimiter_Remove(t *testing.T) {
	l := NewLimiter()

	assert.True(t, l.Allow("/svc", 0.001, 1))
	assert.False(t, l.Allow("/svc", 0.001, 1))

	l.Remove("/svc")
	assert.True(t, l.Allow("/svc", 0.001, 1)) // fresh bucket
}
