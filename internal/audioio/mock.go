package audioio

import (
	"context"
	"math"
	"time"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// MockConfig parameterizes the deterministic tone source used in tests and
// in `acquisition.source: mock`.
type MockConfig struct {
	SampleRate  uint32
	FrameSize   int
	ToneHz      float64
	AmplitudeA  float64
	AmplitudeB  float64
	Realtime    bool
	FrameBudget uint64 // 0 = unbounded
}

// MockSource produces a pure sine tone on channel A and a phase-shifted,
// attenuated copy on channel B -- enough for exercising differential and
// filter nodes without any hardware.
type MockSource struct {
	cfg      MockConfig
	phase    float64
	frameNum uint64
	pacer    *realtimePacer
}

func NewMockSource(cfg MockConfig) *MockSource {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 1024
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	return &MockSource{
		cfg:   cfg,
		pacer: newRealtimePacer(cfg.SampleRate, cfg.FrameSize, cfg.Realtime),
	}
}

func (m *MockSource) Metadata() Metadata {
	return Metadata{Name: "mock", SampleRate: m.cfg.SampleRate, Channels: 2, IsRealtime: m.cfg.Realtime}
}

func (m *MockSource) ReadFrame(ctx context.Context) (*audioframe.Frame, error) {
	if m.cfg.FrameBudget != 0 && m.frameNum >= m.cfg.FrameBudget {
		return nil, ErrEndOfStream
	}

	if err := m.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	n := m.cfg.FrameSize
	a := make([]float32, n)
	b := make([]float32, n)
	omega := 2 * math.Pi * m.cfg.ToneHz / float64(m.cfg.SampleRate)
	for i := 0; i < n; i++ {
		p := m.phase + omega*float64(i)
		a[i] = float32(m.cfg.AmplitudeA * math.Sin(p))
		b[i] = float32(m.cfg.AmplitudeB * math.Sin(p+math.Pi/8))
	}
	m.phase += omega * float64(n)

	m.frameNum++
	return &audioframe.Frame{
		ChannelA:    a,
		ChannelB:    b,
		SampleRate:  m.cfg.SampleRate,
		TimestampMs: time.Now().UnixMilli(),
		FrameNumber: m.frameNum,
	}, nil
}

func (m *MockSource) Close() error { return nil }
