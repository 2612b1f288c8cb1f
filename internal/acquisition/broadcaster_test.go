package acquisition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

func frameN(n uint64) *audioframe.Frame {
	return &audioframe.Frame{
		ChannelA:    []float32{0},
		ChannelB:    []float32{0},
		SampleRate:  48000,
		FrameNumber: n,
	}
}

func TestBroadcaster_OrderedDeliveryWithoutOverrun(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe(1000, 48000, 1024)

	for i := uint64(1); i <= 5; i++ {
		b.Publish(frameN(i))
	}

	for i := uint64(1); i <= 5; i++ {
		f, ok := sub.Recv()
		require.True(t, ok)
		require.Equal(t, i, f.FrameNumber)
	}
	require.Zero(t, sub.LagCount())
}

func TestBroadcaster_LossyBackpressureOnSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	// A tiny lag budget forces drops quickly.
	sub := b.Subscribe(0, 48000, 1024) // latencyBudgetMs=0 -> size clamps to 2

	for i := uint64(1); i <= 10; i++ {
		b.Publish(frameN(i))
	}

	require.EqualValues(t, 10, b.Published())
	require.Greater(t, sub.LagCount(), uint64(0), "slow subscriber must observe dropped frames")

	// Whatever remains must still be strictly increasing (no reordering).
	var last uint64
	for {
		select {
		case f, ok := <-sub.Chan():
			if !ok {
				return
			}
			require.Greater(t, f.FrameNumber, last)
			last = f.FrameNumber
		default:
			return
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe(1000, 48000, 1024)
	b.Unsubscribe(sub)

	_, ok := sub.Recv()
	require.False(t, ok)

	// Publishing after unsubscribe must not panic.
	b.Publish(frameN(1))
}
