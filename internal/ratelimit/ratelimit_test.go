package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireWithinCapacityDoesNotBlock(t *testing.T) {
	l := New(5, 1)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background(), 1))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestAcquireHonorsCancellation(t *testing.T) {
	l := New(1, 0.001)
	require.NoError(t, l.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, 1)
	require.Error(t, err)
}

func TestDefaultsAndSetRate(t *testing.T) {
	l := New(0, -1)
	require.Equal(t, DefaultCapacity, l.Capacity())
	require.InDelta(t, DefaultRefillRate, l.Rate(), 0.001)

	l.SetRate(42, 2.5)
	require.Equal(t, 42, l.Capacity())
	require.InDelta(t, 2.5, l.Rate(), 0.001)
}
