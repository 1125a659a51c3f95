package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBurstThenQueue reproduces spec §8 Scenario F: capacity 6, refill
// 1/s; the first 6 requests succeed immediately, the 7th must wait.
func TestBurstThenQueue(t *testing.T) {
	l := New(6, 1)
	for i := 0; i < 6; i++ {
		require.True(t, l.Allow(), "request %d should succeed immediately", i)
	}
	require.False(t, l.Allow(), "7th immediate request should be denied")
}

// TestDeadlineExceededReturnsRateLimited reproduces spec §8 Scenario F's
// deadline-exceeded case for requests queued beyond capacity.
func TestDeadlineExceededReturnsRateLimited(t *testing.T) {
	l := New(1, 0.1) // refill far slower than the deadline below
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRateLimited) || errors.Is(err, context.DeadlineExceeded))
}

func TestRegistryIsolatesEndpointClasses(t *testing.T) {
	r := NewRegistry()
	r.Register("binance", Snapshot, 6, 1)
	r.Register("binance", Funding, 2, 0.5)

	require.NotNil(t, r.Get("binance", Snapshot))
	require.NotNil(t, r.Get("binance", Funding))
	require.Nil(t, r.Get("okx", Snapshot))
}
