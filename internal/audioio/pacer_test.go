package audioio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRealtimePacer_BurstModeReturnsImmediately(t *testing.T) {
	p := newRealtimePacer(48000, 480, false)
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
}

func TestRealtimePacer_ZeroSampleRateNeverBlocks(t *testing.T) {
	p := newRealtimePacer(0, 480, true)
	require.NoError(t, p.Wait(context.Background()))
}

func TestRealtimePacer_ThrottlesToFrameRate(t *testing.T) {
	// 48000/480 = 100 frames/sec, so every frame after the first costs ~10ms.
	p := newRealtimePacer(48000, 480, true)
	require.NoError(t, p.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRealtimePacer_RespectsContextCancellation(t *testing.T) {
	p := newRealtimePacer(1, 480, true) // ~1 frame every 480s, far slower than the test timeout
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx)
	require.Error(t, err)
}
