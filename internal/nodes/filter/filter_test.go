package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

func dcFrame(n int, sr uint32) graphdata.DualChannel {
	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = 1
		b[i] = 1
	}
	return graphdata.DualChannel{ChannelA: a, ChannelB: b, SampleRate: sr, Frame: 1}
}

func TestDesign_LowpassSectionCountMatchesOrder(t *testing.T) {
	sections := Design(Butterworth, Lowpass, 4, 48000, 1000, 0, 0)
	require.Len(t, sections, 2)
}

func TestDesign_OddOrderRoundsUpToEven(t *testing.T) {
	sections := Design(Butterworth, Lowpass, 3, 48000, 1000, 0, 0)
	require.Len(t, sections, 2)
}

func TestApply_DCInputSettlesToStableGain(t *testing.T) {
	sections := Design(Butterworth, Lowpass, 2, 48000, 4000, 0, 0)
	hist := NewHistory(len(sections))
	x := make([]float32, 2000)
	for i := range x {
		x[i] = 1
	}
	Apply(sections, hist, x)
	tail := x[len(x)-10:]
	for _, v := range tail {
		require.False(t, math.IsNaN(float64(v)))
		require.InDelta(t, 1.0, float64(v), 0.05)
	}
}

func TestNode_TargetBothFiltersBothChannels(t *testing.T) {
	n := New("f1", Params{
		Response: Butterworth, Shape: Lowpass, Order: 2,
		SampleRate: 48000, CenterHz: 4000, Target: TargetBoth,
	})
	out, err := n.Process(dcFrame(256, 48000))
	require.NoError(t, err)
	dc, ok := out.(graphdata.DualChannel)
	require.True(t, ok)
	require.Len(t, dc.ChannelA, 256)
	require.Len(t, dc.ChannelB, 256)
}

func TestNode_TargetASkipsChannelB(t *testing.T) {
	n := New("f1", Params{
		Response: Butterworth, Shape: Highpass, Order: 2,
		SampleRate: 48000, CenterHz: 50, Target: TargetA,
	})
	in := dcFrame(256, 48000)
	out, err := n.Process(in)
	require.NoError(t, err)
	dc := out.(graphdata.DualChannel)
	require.Equal(t, in.ChannelB, dc.ChannelB)
}

func TestNode_UpdateConfigPreservesHistoryUnlessFlushRequested(t *testing.T) {
	n := New("f1", Params{Response: Butterworth, Shape: Lowpass, Order: 2, SampleRate: 48000, CenterHz: 4000, Target: TargetBoth})
	_, err := n.Process(dcFrame(256, 48000))
	require.NoError(t, err)
	before := n.histA[0]

	outcome, err := n.UpdateConfig(map[string]any{"ripple_db": 1.0})
	require.NoError(t, err)
	require.Equal(t, before, n.histA[0])
	_ = outcome
}

func TestNode_UpdateConfigFlushesHistoryWhenRequested(t *testing.T) {
	n := New("f1", Params{Response: Butterworth, Shape: Lowpass, Order: 2, SampleRate: 48000, CenterHz: 4000, Target: TargetBoth})
	_, err := n.Process(dcFrame(256, 48000))
	require.NoError(t, err)

	_, err = n.UpdateConfig(map[string]any{"flush_on_update": true})
	require.NoError(t, err)
	require.Equal(t, History{}, n.histA[0])
}

func TestNode_RejectsUnsupportedInput(t *testing.T) {
	n := New("f1", Params{Response: Butterworth, Shape: Lowpass, Order: 2, SampleRate: 48000, CenterHz: 4000, Target: TargetBoth})
	_, err := n.Process(graphdata.PhotoacousticResult{})
	require.Error(t, err)
}
