package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryLimiter_BurstPerKey(t *testing.T) {
	l := NewInMemoryLimiter(1, time.Hour, 2)

	assert.True(t, l.Allow("0xabc"))
	assert.True(t, l.Allow("0xabc"))
	assert.False(t, l.Allow("0xabc"))

	assert.True(t, l.Allow("0xdef"), "keys are throttled independently")
}

func TestInMemoryLimiter_ClampsBadConfig(t *testing.T) {
	l := NewInMemoryLimiter(0, time.Hour, 0)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestUnlimited(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, Unlimited{}.Allow("k"))
	}
}
