// Package graphdata defines ProcessingData, the tagged-union payload that
// flows between ProcessingGraph nodes. Go has no native sum type, so the
// union is modeled as an interface implemented by four concrete variants;
// type switches at node boundaries substitute for the pattern match the
// spec describes.
package graphdata

import (
	"fmt"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// Kind tags a Data variant for the graph's static typing contract.
type Kind string

const (
	KindRawAudio            Kind = "raw_audio"
	KindSingleChannel       Kind = "single_channel"
	KindDualChannel         Kind = "dual_channel"
	KindPhotoacousticResult Kind = "photoacoustic_result"
)

// Data is implemented by RawAudio, SingleChannel, DualChannel and
// PhotoacousticResult. Kind lets a node's accepts_input/output_type
// contract be checked without a type assertion.
type Data interface {
	Kind() Kind
	// FrameNumber and TimestampMs let a variant recompute timing without
	// any reference to state outside itself, per spec.md 3.
	FrameNumber() uint64
	TimestampMs() int64
}

// RawAudio is a frame straight off an AudioSource, unmodified.
type RawAudio struct {
	Frame *audioframe.Frame
}

func (r RawAudio) Kind() Kind          { return KindRawAudio }
func (r RawAudio) FrameNumber() uint64 { return r.Frame.FrameNumber }
func (r RawAudio) TimestampMs() int64  { return r.Frame.TimestampMs }

// SingleChannel carries one channel's worth of samples, produced by a
// differential, selector or mixer node, or by any filter applied to a
// single-channel stream.
type SingleChannel struct {
	Samples     []float32
	SampleRate  uint32
	Timestamp   int64
	Frame       uint64
}

func (s SingleChannel) Kind() Kind          { return KindSingleChannel }
func (s SingleChannel) FrameNumber() uint64 { return s.Frame }
func (s SingleChannel) TimestampMs() int64  { return s.Timestamp }

// DualChannel carries both channels through filter and gain stages that
// have not yet collapsed them to one.
type DualChannel struct {
	ChannelA   []float32
	ChannelB   []float32
	SampleRate uint32
	Timestamp  int64
	Frame      uint64
}

func (d DualChannel) Kind() Kind          { return KindDualChannel }
func (d DualChannel) FrameNumber() uint64 { return d.Frame }
func (d DualChannel) TimestampMs() int64  { return d.Timestamp }

// PhotoacousticResult is the terminal payload produced by computing nodes
// for external consumption (it is never re-entered into the graph).
type PhotoacousticResult struct {
	Signal    []float32
	Metadata  map[string]string
	Timestamp int64
	Frame     uint64
}

func (p PhotoacousticResult) Kind() Kind          { return KindPhotoacousticResult }
func (p PhotoacousticResult) FrameNumber() uint64 { return p.Frame }
func (p PhotoacousticResult) TimestampMs() int64  { return p.Timestamp }

// AsAudioFrame re-stitches a RawAudio, DualChannel or SingleChannel
// payload into a canonical dual-channel audio frame, used by the streaming
// node to publish a uniform wire shape regardless of where in the graph it
// sits. A PhotoacousticResult has no audio form and returns an error.
func AsAudioFrame(d Data) (*audioframe.Frame, error) {
	switch v := d.(type) {
	case RawAudio:
		return v.Frame, nil
	case DualChannel:
		return &audioframe.Frame{
			ChannelA:    v.ChannelA,
			ChannelB:    v.ChannelB,
			SampleRate:  v.SampleRate,
			TimestampMs: v.Timestamp,
			FrameNumber: v.Frame,
		}, nil
	case SingleChannel:
		return &audioframe.Frame{
			ChannelA:    v.Samples,
			ChannelB:    v.Samples,
			SampleRate:  v.SampleRate,
			TimestampMs: v.Timestamp,
			FrameNumber: v.Frame,
		}, nil
	default:
		return nil, fmt.Errorf("graphdata: variant %T has no canonical audio representation", d)
	}
}
