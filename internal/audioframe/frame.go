// Package audioframe defines the immutable dual-channel sample block that
// flows from every AudioSource through the acquisition broadcaster.
package audioframe

import "fmt"

// Frame is one dual-microphone sample block. ChannelA and ChannelB always
// have equal, non-zero length and share a sample rate for the life of the
// producing source; FrameNumber is strictly increasing per source.
type Frame struct {
	ChannelA     []float32
	ChannelB     []float32
	SampleRate   uint32
	TimestampMs  int64
	FrameNumber  uint64
}

// Validate checks the invariants spec.md 3 places on every frame. The
// sources and the acquisition daemon in this module do not call it; frames
// are published without this check.
func (f *Frame) Validate() error {
	if len(f.ChannelA) == 0 {
		return fmt.Errorf("audioframe: channel A is empty")
	}
	if len(f.ChannelA) != len(f.ChannelB) {
		return fmt.Errorf("audioframe: channel length mismatch: a=%d b=%d", len(f.ChannelA), len(f.ChannelB))
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("audioframe: sample rate must be positive")
	}
	return nil
}

// Samples returns the number of samples per channel.
func (f *Frame) Samples() int {
	return len(f.ChannelA)
}

// Clone returns a deep copy suitable for handing to a subscriber that must
// not observe mutation performed by another subscriber or by the producer
// reusing its buffer pool.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		ChannelA:    make([]float32, len(f.ChannelA)),
		ChannelB:    make([]float32, len(f.ChannelB)),
		SampleRate:  f.SampleRate,
		TimestampMs: f.TimestampMs,
		FrameNumber: f.FrameNumber,
	}
	copy(out.ChannelA, f.ChannelA)
	copy(out.ChannelB, f.ChannelB)
	return out
}
