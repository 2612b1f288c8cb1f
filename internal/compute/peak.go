package compute

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// PeakParams configures a PeakFinder node (spec.md 4.7).
type PeakParams struct {
	FFTSize              int // power of two, default 4096
	FreqMinHz            float64
	FreqMaxHz            float64
	DetectionThreshold   float64
	SmoothingFactor      float64 // single-pole exponential filter coefficient
	CoherenceCount       int     // consecutive detections required before publish, 0/1 disables
	CoherenceToleranceHz float64
}

func (p PeakParams) withDefaults() PeakParams {
	if p.FFTSize <= 0 {
		p.FFTSize = 4096
	}
	if p.SmoothingFactor <= 0 {
		p.SmoothingFactor = 0.2
	}
	return p
}

// PeakFinder is a pass-through node: it accumulates samples into a
// windowing buffer, locates the dominant frequency in the configured
// band and writes a PeakResult into shared State, but always emits its
// input unchanged.
type PeakFinder struct {
	graph.BaseNode
	params PeakParams
	state  *State

	buf          []float64
	fft          *fourier.FFT
	inputKind    graphdata.Kind
	smoothed     float64
	haveSmoothed bool
	coherenceRun int
	lastHz       float64
}

func NewPeakFinder(id string, p PeakParams, state *State) *PeakFinder {
	p = p.withDefaults()
	return &PeakFinder{
		BaseNode:  graph.NewBaseNode(id, "peak_finder"),
		params:    p,
		state:     state,
		buf:       make([]float64, 0, p.FFTSize*2),
		fft:       fourier.NewFFT(p.FFTSize),
		inputKind: graphdata.KindSingleChannel,
	}
}

func (n *PeakFinder) AcceptsInput(k graphdata.Kind) bool {
	return k == graphdata.KindSingleChannel || k == graphdata.KindRawAudio
}

func (n *PeakFinder) OutputType() graphdata.Kind { return n.inputKind }

func (n *PeakFinder) Process(in graphdata.Data) (graphdata.Data, error) {
	var samples []float32
	var sampleRate uint32

	switch v := in.(type) {
	case graphdata.SingleChannel:
		samples, sampleRate = v.Samples, v.SampleRate
	case graphdata.RawAudio:
		samples, sampleRate = v.Frame.ChannelA, v.Frame.SampleRate
	default:
		return nil, &paerrors.NodeTypeMismatchError{Node: n.ID(), Want: "SingleChannel or RawAudio", Got: in}
	}
	n.inputKind = in.Kind()

	for _, s := range samples {
		n.buf = append(n.buf, float64(s))
	}
	if len(n.buf) < n.params.FFTSize {
		return in, nil
	}

	windowed := make([]float64, n.params.FFTSize)
	copy(windowed, n.buf[:n.params.FFTSize])
	n.buf = append(n.buf[:0], n.buf[n.params.FFTSize:]...)
	applyHann(windowed)

	coeffs := n.fft.Coefficients(nil, windowed)

	binHz := float64(sampleRate) / float64(n.params.FFTSize)
	loBin := int(n.params.FreqMinHz / binHz)
	hiBin := int(n.params.FreqMaxHz / binHz)
	if loBin < 1 {
		loBin = 1
	}
	if hiBin >= len(coeffs) {
		hiBin = len(coeffs) - 1
	}
	if hiBin < loBin {
		return in, nil
	}

	bestBin := -1
	bestMag := 0.0
	for i := loBin; i <= hiBin; i++ {
		mag := cmplxAbs(coeffs[i])
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}

	if bestBin < 0 || bestMag < n.params.DetectionThreshold {
		n.coherenceRun = 0
		return in, nil
	}

	refinedBin := parabolicPeak(coeffs, bestBin)
	freqHz := refinedBin * binHz

	if n.params.CoherenceCount > 1 {
		if n.coherenceRun > 0 && math.Abs(freqHz-n.lastHz) > n.params.CoherenceToleranceHz {
			n.coherenceRun = 0
		}
		n.coherenceRun++
		n.lastHz = freqHz
		if n.coherenceRun < n.params.CoherenceCount {
			return in, nil
		}
	}

	if !n.haveSmoothed {
		n.smoothed = freqHz
		n.haveSmoothed = true
	} else {
		a := n.params.SmoothingFactor
		n.smoothed = a*freqHz + (1-a)*n.smoothed
	}

	n.state.PutPeak(PeakResult{
		NodeID:      n.ID(),
		FrequencyHz: n.smoothed,
		Amplitude:   normalizeAmplitude(bestMag, n.params.FFTSize),
		ObservedAt:  nowFunc(),
	})

	return in, nil
}

func (n *PeakFinder) Reset() {
	n.buf = n.buf[:0]
	n.haveSmoothed = false
	n.coherenceRun = 0
}

func (n *PeakFinder) Clone() graph.Node {
	return NewPeakFinder(n.ID(), n.params, n.state)
}

func (n *PeakFinder) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	p := n.params
	if v, ok := params["freq_min_hz"].(float64); ok {
		p.FreqMinHz = v
	}
	if v, ok := params["freq_max_hz"].(float64); ok {
		p.FreqMaxHz = v
	}
	if v, ok := params["detection_threshold"].(float64); ok {
		p.DetectionThreshold = v
	}
	if v, ok := params["smoothing_factor"].(float64); ok {
		p.SmoothingFactor = v
	}
	if v, ok := params["coherence_count"].(int); ok {
		p.CoherenceCount = v
	}
	if v, ok := params["coherence_tolerance_hz"].(float64); ok {
		p.CoherenceToleranceHz = v
	}
	if fftSize, ok := params["fft_size"].(int); ok && fftSize != n.params.FFTSize {
		p.FFTSize = fftSize
		n.params = p.withDefaults()
		n.fft = fourier.NewFFT(n.params.FFTSize)
		n.buf = n.buf[:0]
		return graph.RequiresRebuild, nil
	}
	n.params = p
	return graph.AppliedInPlace, nil
}

// normalizeAmplitude maps a raw FFT bin magnitude to [0,1] (spec.md 3:
// "amplitude_normalized ∈ [0,1]"). The reference is the magnitude a
// full-scale (amplitude 1) sinusoid produces in a Hann-windowed FFT bin:
// the window's coherent gain is 0.5, and an unwindowed single-tone DFT
// bin has magnitude fftSize/2, so the windowed reference is fftSize/4.
// Signals exceeding that (clipping, multi-tone constructive overlap) are
// clamped rather than reported above 1.
func normalizeAmplitude(mag float64, fftSize int) float64 {
	ref := float64(fftSize) / 4
	if ref <= 0 {
		return 0
	}
	v := mag / ref
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// applyHann multiplies x in place by a symmetric Hann window (n-1
// denominator, zero at both ends).
func applyHann(x []float64) {
	n := len(x)
	for i := range x {
		x[i] *= 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
}

// parabolicPeak refines a discrete magnitude peak at index bin using
// three-point parabolic interpolation across its neighbors, returning a
// fractional bin index.
func parabolicPeak(coeffs []complex128, bin int) float64 {
	if bin <= 0 || bin >= len(coeffs)-1 {
		return float64(bin)
	}
	ym1 := cmplxAbs(coeffs[bin-1])
	y0 := cmplxAbs(coeffs[bin])
	yp1 := cmplxAbs(coeffs[bin+1])
	denom := ym1 - 2*y0 + yp1
	if denom == 0 {
		return float64(bin)
	}
	delta := 0.5 * (ym1 - yp1) / denom
	return float64(bin) + delta
}

// nowFunc is indirected so tests can pin time when needed.
var nowFunc = time.Now
