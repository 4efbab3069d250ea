package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFirstCallNeverBlocks(t *testing.T) {
	p := NewPacer(time.Second)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, p.Wait(context.Background()))
	assert.Empty(t, slept)
}

func TestPacerEnforcesFloorAcrossCalls(t *testing.T) {
	interval := 3 * time.Second
	p := NewPacer(interval)

	var total time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		total += d
		return nil
	}

	// K back-to-back requests reserve at least (K-1) intervals of delay
	const k = 5
	for i := 0; i < k; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, total, time.Duration(k-1)*interval-50*time.Millisecond)
}

func TestPacerNoDelayAfterQuietPeriod(t *testing.T) {
	p := NewPacer(time.Millisecond)
	var slept int
	p.sleep = func(context.Context, time.Duration) error {
		slept++
		return nil
	}

	require.NoError(t, p.Wait(context.Background()))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))
	assert.Zero(t, slept, "a fully elapsed interval costs nothing")
}

func TestPacerCancellation(t *testing.T) {
	p := NewPacer(time.Minute)
	require.NoError(t, p.Wait(context.Background())) // take the free slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacerInterval(t *testing.T) {
	assert.Equal(t, 3*time.Second, NewPacer(3*time.Second).Interval())
}
