package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_BurstThenThrottle(t *testing.T) {
	tb := NewTokenBucket(10, 2) // 10/s, burst of 2

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	require.NoError(t, tb.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "burst tokens must not block")

	// Third call has to wait roughly one refill interval (100ms at 10/s).
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestTokenBucket_CancelledWhileWaiting(t *testing.T) {
	tb := NewTokenBucket(0.001, 1)
	require.NoError(t, tb.Wait(context.Background())) // drain the burst token

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPerMinute(t *testing.T) {
	tb := PerMinute(60, 1)
	require.NoError(t, tb.Wait(context.Background()))
}
