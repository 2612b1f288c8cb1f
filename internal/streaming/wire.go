package streaming

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// JSONEvent is the SSE JSON representation of a frame (spec.md 6).
type JSONEvent struct {
	ChannelA   []float32 `json:"channel_a"`
	ChannelB   []float32 `json:"channel_b"`
	SampleRate uint32    `json:"sample_rate"`
	Timestamp  int64     `json:"timestamp"`
	FrameNum   uint64    `json:"frame_number"`
}

// EncodeJSON renders a frame as the SSE JSON event body (without the
// "data: " prefix or trailing blank line — that framing belongs to the
// HTTP layer).
func EncodeJSON(f *audioframe.Frame) ([]byte, error) {
	ev := JSONEvent{
		ChannelA:   f.ChannelA,
		ChannelB:   f.ChannelB,
		SampleRate: f.SampleRate,
		Timestamp:  f.TimestampMs,
		FrameNum:   f.FrameNumber,
	}
	return json.Marshal(ev)
}

// EncodeBinary renders a frame as the compact binary format (spec.md 6):
// a 4-byte little-endian length, a 4-byte sample count, a 4-byte sample
// rate, an 8-byte timestamp, then interleaved 32-bit float samples
// (channel A then channel B, per sample).
//
// The leading length field covers everything after itself: sample
// count, sample rate, timestamp and the sample payload.
func EncodeBinary(f *audioframe.Frame) []byte {
	n := len(f.ChannelA)
	payloadLen := 4 + 4 + 8 + 4*2*n
	buf := make([]byte, 4+payloadLen)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(payloadLen))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n))
	binary.LittleEndian.PutUint32(buf[8:12], f.SampleRate)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(f.TimestampMs))

	off := 20
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f.ChannelA[i]))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f.ChannelB[i]))
		off += 4
	}
	return buf
}
