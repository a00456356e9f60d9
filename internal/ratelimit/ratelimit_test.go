package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterWait(t *testing.T) {
	rl := NewSimpleRateLimiter(20*time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx))
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSimpleRateLimiterCancelled(t *testing.T) {
	rl := NewSimpleRateLimiter(time.Second, time.Second)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}

func TestSimpleRateLimiterSetDelay(t *testing.T) {
	rl := NewSimpleRateLimiter(time.Second, 2*time.Second)
	rl.SetDelay(3*time.Second, time.Second)

	min, max := rl.Delays()
	assert.Equal(t, 3*time.Second, min)
	assert.Equal(t, 3*time.Second, max)
}

func TestAdaptiveRateLimiterBacksOff(t *testing.T) {
	rl := NewAdaptiveRateLimiter(100*time.Millisecond, 200*time.Millisecond, 250*time.Millisecond)

	rl.RecordError()
	rl.RecordError()
	min, max := rl.Delays()
	assert.Equal(t, 100*time.Millisecond, min)
	assert.Equal(t, 200*time.Millisecond, max)

	rl.RecordError()
	min, max = rl.Delays()
	assert.Equal(t, 150*time.Millisecond, min)
	assert.Equal(t, 250*time.Millisecond, max)
}

func TestAdaptiveRateLimiterRecovers(t *testing.T) {
	rl := NewAdaptiveRateLimiter(100*time.Millisecond, 200*time.Millisecond, time.Second)
	for i := 0; i < 3; i++ {
		rl.RecordError()
	}
	min, max := rl.Delays()
	require.Equal(t, 150*time.Millisecond, min)
	require.Equal(t, 300*time.Millisecond, max)

	for i := 0; i < 5; i++ {
		rl.RecordSuccess()
	}
	min, _ = rl.Delays()
	assert.Equal(t, 150*time.Millisecond, min, "window unchanged before a full clean streak")

	rl.RecordSuccess()
	min, max = rl.Delays()
	assert.InDelta(t, float64(135*time.Millisecond), float64(min), float64(time.Microsecond))
	assert.InDelta(t, float64(270*time.Millisecond), float64(max), float64(time.Microsecond))

	for i := 0; i < 60; i++ {
		rl.RecordSuccess()
	}
	min, max = rl.Delays()
	assert.Equal(t, 100*time.Millisecond, min)
	assert.Equal(t, 200*time.Millisecond, max)
}

func TestAdaptiveRateLimiterStrikesReset(t *testing.T) {
	rl := NewAdaptiveRateLimiter(100*time.Millisecond, 200*time.Millisecond, time.Second)

	rl.RecordError()
	rl.RecordError()
	rl.RecordSuccess()
	rl.RecordError()

	min, max := rl.Delays()
	assert.Equal(t, 100*time.Millisecond, min)
	assert.Equal(t, 200*time.Millisecond, max)
}
