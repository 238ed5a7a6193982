package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitPacesPerDomain(t *testing.T) {
	l := New(Config{DefaultRPS: 20, DefaultBurst: 1})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "example.com"))
	}
	// Burst of 1 at 20 rps means the second and third calls wait
	// roughly 50ms each.
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestWaitDomainsAreIndependent(t *testing.T) {
	l := New(Config{DefaultRPS: 5, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "a.example.com"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "b.example.com"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "slow.example.com"))
	err := l.Wait(ctx, "slow.example.com")
	require.Error(t, err)
}

func TestZeroRateMeansUnlimited(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "fast.example.com"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
