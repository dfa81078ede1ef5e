package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketExhaustsAndRefills(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2, WindowDuration: 40 * time.Millisecond})
	defer rl.Stop()

	assert.True(t, rl.allow("client-a"))
	assert.True(t, rl.allow("client-a"))
	assert.False(t, rl.allow("client-a"))

	// A different client has its own bucket.
	assert.True(t, rl.allow("client-b"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.allow("client-a"))
}

func TestDefaultsApplied(t *testing.T) {
	rl := New(Config{})
	defer rl.Stop()

	assert.Equal(t, 60, rl.maxTokens)
	assert.Equal(t, time.Second, rl.refillRate)
}
