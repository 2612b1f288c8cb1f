package audioio

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// SimulatedConfig parameterizes the Helmholtz-resonator physics model
// (spec.md 4.1 and 6: acquisition.simulated_source.*).
type SimulatedConfig struct {
	SampleRate        uint32
	FrameSize         int
	ResonanceFreqHz   float64
	QualityFactor     float64
	BaseConcentration float64 // ppm, drives signal amplitude via a linear proxy
	NoiseLevel        float64 // 0..1, relative noise floor
	ThermalDriftHzPerS float64
	Seed              int64
}

// SimulatedSource models a resonant photoacoustic cell: channel A carries
// the resonance-filtered photoacoustic signature (amplitude proportional to
// base concentration, frequency slowly drifting with simulated thermal
// drift), and channel B carries acoustic noise correlated with channel A's
// noise floor but without the photoacoustic signature -- the reference
// microphone signal a differential node is meant to reject.
type SimulatedSource struct {
	cfg      SimulatedConfig
	rng      *rand.Rand
	phaseA   float64
	elapsedS float64
	frameNum uint64
	// single-pole low-pass state used to smooth channel B's copy of the
	// noise floor so it is not simply white noise.
	prevB float64
	pacer *realtimePacer
}

func NewSimulatedSource(cfg SimulatedConfig) *SimulatedSource {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 1024
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.QualityFactor <= 0 {
		cfg.QualityFactor = 50
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &SimulatedSource{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		pacer: newRealtimePacer(cfg.SampleRate, cfg.FrameSize, true),
	}
}

func (s *SimulatedSource) Metadata() Metadata {
	return Metadata{Name: "simulated", SampleRate: s.cfg.SampleRate, Channels: 2, IsRealtime: true}
}

func (s *SimulatedSource) ReadFrame(ctx context.Context) (*audioframe.Frame, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	n := s.cfg.FrameSize
	a := make([]float32, n)
	b := make([]float32, n)

	// A Helmholtz resonator's response magnitude scales with Q near
	// resonance; clamp amplitude to a sane envelope so the "concentration"
	// proxy stays in [0,1] even for pathological Q/concentration inputs.
	amplitude := s.cfg.BaseConcentration / 1000.0 * (s.cfg.QualityFactor / 100.0)
	if amplitude > 1 {
		amplitude = 1
	}
	if amplitude < 0 {
		amplitude = 0
	}

	freq := s.cfg.ResonanceFreqHz + s.cfg.ThermalDriftHzPerS*s.elapsedS
	omega := 2 * math.Pi * freq / float64(s.cfg.SampleRate)

	for i := 0; i < n; i++ {
		signal := amplitude * math.Sin(s.phaseA+omega*float64(i))
		noiseA := s.cfg.NoiseLevel * (s.rng.Float64()*2 - 1)
		a[i] = float32(signal + noiseA)

		// Channel B: correlated broadband acoustic noise, lightly smoothed
		// so it isn't pure white noise -- a crude single-pole low-pass
		// over the same noise floor that perturbs channel A.
		rawNoise := 1.2 * noiseA
		s.prevB = 0.7*s.prevB + 0.3*rawNoise
		b[i] = float32(s.prevB)
	}
	s.phaseA += omega * float64(n)
	s.elapsedS += float64(n) / float64(s.cfg.SampleRate)

	s.frameNum++
	return &audioframe.Frame{
		ChannelA:    a,
		ChannelB:    b,
		SampleRate:  s.cfg.SampleRate,
		TimestampMs: time.Now().UnixMilli(),
		FrameNumber: s.frameNum,
	}, nil
}

func (s *SimulatedSource) Close() error { return nil }
