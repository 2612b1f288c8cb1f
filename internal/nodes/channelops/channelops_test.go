package channelops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

func dcFrame(a, b []float32) graphdata.DualChannel {
	return graphdata.DualChannel{ChannelA: a, ChannelB: b, SampleRate: 48000, Frame: 1}
}

func TestDifferential_SubtractsChannelBFromA(t *testing.T) {
	d := NewDifferential("diff1")
	out, err := d.Process(dcFrame([]float32{3, 5, 1}, []float32{1, 2, 1}))
	require.NoError(t, err)
	sc, ok := out.(graphdata.SingleChannel)
	require.True(t, ok)
	require.Equal(t, []float32{2, 3, 0}, sc.Samples)
}

func TestDifferential_RejectsNonDualChannelInput(t *testing.T) {
	d := NewDifferential("diff1")
	_, err := d.Process(graphdata.SingleChannel{})
	require.Error(t, err)
	var mismatch *paerrors.NodeTypeMismatchError
	require.True(t, errors.As(err, &mismatch))
}

func TestSelector_PicksChannelA(t *testing.T) {
	s := NewSelector("sel1", ChannelA)
	out, err := s.Process(dcFrame([]float32{1, 2, 3}, []float32{9, 9, 9}))
	require.NoError(t, err)
	sc := out.(graphdata.SingleChannel)
	require.Equal(t, []float32{1, 2, 3}, sc.Samples)
}

func TestSelector_PicksChannelBAfterConfigUpdate(t *testing.T) {
	s := NewSelector("sel1", ChannelA)
	_, err := s.UpdateConfig(map[string]any{"channel": "b"})
	require.NoError(t, err)

	out, err := s.Process(dcFrame([]float32{1, 2, 3}, []float32{9, 9, 9}))
	require.NoError(t, err)
	sc := out.(graphdata.SingleChannel)
	require.Equal(t, []float32{9, 9, 9}, sc.Samples)
}

func TestMixer_ModeAdd(t *testing.T) {
	m := NewMixer("mix1", MixAdd, 0, 0)
	out, err := m.Process(dcFrame([]float32{1, 2}, []float32{3, 4}))
	require.NoError(t, err)
	require.Equal(t, []float32{4, 6}, out.(graphdata.SingleChannel).Samples)
}

func TestMixer_ModeSubtract(t *testing.T) {
	m := NewMixer("mix1", MixSubtract, 0, 0)
	out, err := m.Process(dcFrame([]float32{5, 6}, []float32{2, 1}))
	require.NoError(t, err)
	require.Equal(t, []float32{3, 5}, out.(graphdata.SingleChannel).Samples)
}

func TestMixer_ModeMean(t *testing.T) {
	m := NewMixer("mix1", MixMean, 0, 0)
	out, err := m.Process(dcFrame([]float32{2, 4}, []float32{4, 8}))
	require.NoError(t, err)
	require.Equal(t, []float32{3, 6}, out.(graphdata.SingleChannel).Samples)
}

func TestMixer_ModeWeighted(t *testing.T) {
	m := NewMixer("mix1", MixWeighted, 0.25, 0.75)
	out, err := m.Process(dcFrame([]float32{4, 0}, []float32{4, 8}))
	require.NoError(t, err)
	require.Equal(t, []float32{4, 6}, out.(graphdata.SingleChannel).Samples)
}

func TestMixer_UpdateConfigChangesMode(t *testing.T) {
	m := NewMixer("mix1", MixAdd, 0, 0)
	_, err := m.UpdateConfig(map[string]any{"mode": "subtract"})
	require.NoError(t, err)
	out, err := m.Process(dcFrame([]float32{5}, []float32{2}))
	require.NoError(t, err)
	require.Equal(t, []float32{3}, out.(graphdata.SingleChannel).Samples)
}

func TestGain_ScalesSamples(t *testing.T) {
	g := NewGain("gain1", 2.0)
	in := graphdata.SingleChannel{Samples: []float32{1, 2, 3}, SampleRate: 48000, Frame: 1}
	out, err := g.Process(in)
	require.NoError(t, err)
	require.Equal(t, []float32{2, 4, 6}, out.(graphdata.SingleChannel).Samples)
}

func TestGain_RejectsNonSingleChannelInput(t *testing.T) {
	g := NewGain("gain1", 1.0)
	_, err := g.Process(dcFrame([]float32{1}, []float32{1}))
	require.Error(t, err)
}

func TestGain_UpdateConfigChangesFactor(t *testing.T) {
	g := NewGain("gain1", 1.0)
	_, err := g.UpdateConfig(map[string]any{"factor": 3.0})
	require.NoError(t, err)
	out, err := g.Process(graphdata.SingleChannel{Samples: []float32{2}})
	require.NoError(t, err)
	require.Equal(t, []float32{6}, out.(graphdata.SingleChannel).Samples)
}
