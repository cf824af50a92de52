package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gbstd/std-crawler/internal/metrics"
)

func TestDelayPacerPauseDuration(t *testing.T) {
	t.Parallel()
	metrics.Init()

	pacer := NewDelayPacer(PacerConfig{
		Delay:  20 * time.Millisecond,
		Jitter: 10 * time.Millisecond,
	})

	start := time.Now()
	pacer.Pause(context.Background())
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	require.Less(t, elapsed, 200*time.Millisecond)
}

func TestDelayPacerZeroConfigReturnsQuickly(t *testing.T) {
	t.Parallel()
	metrics.Init()

	pacer := NewDelayPacer(PacerConfig{})

	start := time.Now()
	pacer.Pause(context.Background())
	pacer.PauseEnrich(context.Background())
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestDelayPacerSleepHonorsCancellation(t *testing.T) {
	t.Parallel()
	metrics.Init()

	pacer := NewDelayPacer(PacerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	pacer.Sleep(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second)
}

func TestDelayPacerRateCap(t *testing.T) {
	t.Parallel()
	metrics.Init()

	// 10 rps with burst 1: three pauses need at least ~200ms of limiter wait.
	pacer := NewDelayPacer(PacerConfig{MaxRPS: 10})

	start := time.Now()
	for i := 0; i < 3; i++ {
		pacer.Pause(context.Background())
	}
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
