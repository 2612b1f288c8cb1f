package streaming

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

func TestRegistry_RegisterPublishLookup(t *testing.T) {
	r := NewRegistry()
	b := r.Register("stream1")
	sub := b.Subscribe(200, 48000, 1024)

	f := &audioframe.Frame{ChannelA: []float32{1, 2}, ChannelB: []float32{3, 4}, SampleRate: 48000, FrameNumber: 1}
	require.NoError(t, r.Publish("stream1", f))

	got, ok := sub.Recv()
	require.True(t, ok)
	require.Equal(t, f, got)
}

func TestRegistry_PublishUnknownNodeErrors(t *testing.T) {
	r := NewRegistry()
	err := r.Publish("nope", &audioframe.Frame{})
	require.Error(t, err)
}

func TestRegistry_UnregisterRemovesStream(t *testing.T) {
	r := NewRegistry()
	r.Register("stream1")
	r.Unregister("stream1")
	_, ok := r.Lookup("stream1")
	require.False(t, ok)
}

func TestNode_PublishesAndPassesThrough(t *testing.T) {
	r := NewRegistry()
	n := NewNode("s1", r)
	b, _ := r.Lookup("s1")
	sub := b.Subscribe(200, 48000, 256)

	in := graphdata.DualChannel{ChannelA: []float32{1, 2}, ChannelB: []float32{3, 4}, SampleRate: 48000, Frame: 7}
	out, err := n.Process(in)
	require.NoError(t, err)
	require.Equal(t, in, out)

	got, ok := sub.Recv()
	require.True(t, ok)
	require.Equal(t, uint64(7), got.FrameNumber)
}

func TestEncodeJSON_RoundTripsFields(t *testing.T) {
	f := &audioframe.Frame{ChannelA: []float32{1.5, 2.5}, ChannelB: []float32{3.5, 4.5}, SampleRate: 48000, TimestampMs: 123, FrameNumber: 9}
	raw, err := EncodeJSON(f)
	require.NoError(t, err)

	var ev JSONEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.Equal(t, f.ChannelA, ev.ChannelA)
	require.Equal(t, f.ChannelB, ev.ChannelB)
	require.Equal(t, uint32(48000), ev.SampleRate)
	require.Equal(t, int64(123), ev.Timestamp)
	require.Equal(t, uint64(9), ev.FrameNum)
}

func TestEncodeBinary_HeaderFieldsAndLength(t *testing.T) {
	f := &audioframe.Frame{ChannelA: []float32{1, 2, 3}, ChannelB: []float32{4, 5, 6}, SampleRate: 48000, TimestampMs: 77, FrameNumber: 1}
	buf := EncodeBinary(f)

	payloadLen := binary.LittleEndian.Uint32(buf[0:4])
	require.Equal(t, uint32(len(buf)-4), payloadLen)

	n := binary.LittleEndian.Uint32(buf[4:8])
	require.Equal(t, uint32(3), n)

	sr := binary.LittleEndian.Uint32(buf[8:12])
	require.Equal(t, uint32(48000), sr)

	ts := binary.LittleEndian.Uint64(buf[12:20])
	require.Equal(t, uint64(77), ts)

	require.Equal(t, 20+4*2*3, len(buf))
}
