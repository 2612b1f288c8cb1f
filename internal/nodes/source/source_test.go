package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

func TestNode_ConvertsRawAudioToDualChannel(t *testing.T) {
	n := New("src")
	assert.True(t, n.AcceptsInput(graphdata.KindRawAudio))
	assert.False(t, n.AcceptsInput(graphdata.KindDualChannel))
	assert.Equal(t, graphdata.KindDualChannel, n.OutputType())

	frame := &audioframe.Frame{
		ChannelA:    []float32{1, 2, 3},
		ChannelB:    []float32{4, 5, 6},
		SampleRate:  48000,
		TimestampMs: 1000,
		FrameNumber: 7,
	}
	out, err := n.Process(graphdata.RawAudio{Frame: frame})
	require.NoError(t, err)
	dc, ok := out.(graphdata.DualChannel)
	require.True(t, ok)
	assert.Equal(t, frame.ChannelA, dc.ChannelA)
	assert.Equal(t, frame.ChannelB, dc.ChannelB)
	assert.Equal(t, frame.FrameNumber, dc.Frame)
}

func TestNode_RejectsWrongInputType(t *testing.T) {
	n := New("src")
	_, err := n.Process(graphdata.DualChannel{})
	require.Error(t, err)
}

func TestNode_RejectsEmptyFrame(t *testing.T) {
	n := New("src")
	_, err := n.Process(graphdata.RawAudio{Frame: &audioframe.Frame{SampleRate: 48000}})
	require.Error(t, err)

	_, err = n.Process(graphdata.RawAudio{Frame: nil})
	require.Error(t, err)
}

func TestNode_CloneIsIndependent(t *testing.T) {
	n := New("src")
	c := n.Clone()
	assert.Equal(t, n.ID(), c.ID())
}
