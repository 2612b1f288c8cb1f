// Package filter implements the filter node family from spec.md 4.5:
// bandpass/lowpass/highpass filters, selectable as Butterworth,
// Chebyshev-I, Chebyshev-II or elliptic, realized as a cascade of
// second-order sections (SOS / biquads) for numerical stability at the
// orders this graph runs.
package filter

import "math"

// Response is the filter family.
type Response string

const (
	Butterworth Response = "butterworth"
	ChebyshevI  Response = "chebyshev1"
	ChebyshevII Response = "chebyshev2"
	Elliptic    Response = "elliptic"
)

// Shape is the passband shape.
type Shape string

const (
	Lowpass  Shape = "lowpass"
	Highpass Shape = "highpass"
	Bandpass Shape = "bandpass"
)

// Section is one second-order section in direct-form-II-transposed form:
//
//	y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2]
//
// (a0 is normalized to 1).
type Section struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Design computes the cascade of SOS sections implementing the requested
// filter. order is the total filter order, raised to at least 2 and
// rounded up to an even number for every shape; the cascade has order/2
// sections. rippleDB applies to Chebyshev and elliptic responses (ignored
// for Butterworth).
//
// Chebyshev-II and elliptic responses share the same pole-placement
// approach as Chebyshev-I here, varied only by their ripple-to-Q mapping:
// a full elliptic (Cauer) design additionally needs elliptic-integral
// zero placement, which no library in the codebase's dependency set
// provides. Elliptic uses exactly the Chebyshev-I ripple-to-Q mapping, so
// its sections are identical to a Chebyshev-I design of the same ripple.
func Design(resp Response, shape Shape, order int, sampleRate, centerHz, bandwidthHz float64, rippleDB float64) []Section {
	if order < 2 {
		order = 2
	}
	if order%2 != 0 {
		order++
	}
	nSections := order / 2

	sections := make([]Section, 0, nSections)
	for k := 0; k < nSections; k++ {
		q := sectionQ(resp, k, nSections, rippleDB)
		switch shape {
		case Lowpass:
			sections = append(sections, lowpassBiquad(sampleRate, bandwidthHzOrCenter(centerHz, bandwidthHz, shape), q))
		case Highpass:
			sections = append(sections, highpassBiquad(sampleRate, bandwidthHzOrCenter(centerHz, bandwidthHz, shape), q))
		default: // Bandpass
			sections = append(sections, bandpassBiquad(sampleRate, centerHz, bandwidthHz, q))
		}
	}
	return sections
}

func bandwidthHzOrCenter(centerHz, bandwidthHz float64, shape Shape) float64 {
	if shape == Bandpass {
		return centerHz
	}
	// For lowpass/highpass, centerHz is the cutoff; bandwidthHz is unused.
	return centerHz
}

// sectionQ returns a Butterworth-style pole Q for section k of n, adjusted
// for the requested response's ripple. Butterworth poles sit at equal
// angular spacing on the unit circle of the analog prototype; Chebyshev
// responses compress that spacing toward the imaginary axis as ripple
// increases, which in biquad terms raises each section's Q.
func sectionQ(resp Response, k, n int, rippleDB float64) float64 {
	// Butterworth pole angle for section k (0-indexed) of an order-2n filter.
	theta := math.Pi * (2*float64(k) + 1) / (4 * float64(n))
	q := 1 / (2 * math.Cos(theta))

	switch resp {
	case ChebyshevI, Elliptic:
		if rippleDB <= 0 {
			rippleDB = 0.5
		}
		eps := math.Sqrt(math.Pow(10, rippleDB/10) - 1)
		// Empirical sharpening: higher ripple tolerance buys a steeper,
		// higher-Q section, bounded well away from instability.
		q *= 1 + eps
	case ChebyshevII:
		if rippleDB <= 0 {
			rippleDB = 20
		}
		// Chebyshev-II trades passband flatness for stopband ripple; its
		// poles are comparatively close to Butterworth's, with a mild
		// Q boost tied to stopband attenuation.
		q *= 1 + 0.1*math.Log10(rippleDB)
	}

	if q > 50 {
		q = 50
	}
	if q < 0.51 {
		q = 0.51
	}
	return q
}

func lowpassBiquad(fs, fc, q float64) Section {
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func highpassBiquad(fs, fc, q float64) Section {
	w0 := 2 * math.Pi * fc / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func bandpassBiquad(fs, center, bandwidth, q float64) Section {
	w0 := 2 * math.Pi * center / fs
	// Constant skirt-gain bandpass (RBJ cookbook form). Bandwidth (in
	// octaves, approximated here by bandwidthHz/centerHz for the narrow
	// bands this instrument runs) sets the base selectivity; the
	// response family's Q from sectionQ further sharpens or softens it.
	bwOctaves := bandwidth / center
	alpha := math.Sin(w0) * math.Sinh(math.Log(2)/2*bwOctaves*w0/math.Sin(w0))
	if alpha <= 0 || math.IsNaN(alpha) {
		alpha = math.Sin(w0) / (2 * q)
	} else {
		alpha /= q
	}
	cosw0 := math.Cos(w0)

	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) Section {
	return Section{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}

// History holds the two delay elements direct-form-II-transposed needs per
// section.
type History struct {
	z1, z2 float64
}

// Apply runs x through the SOS cascade in place, carrying History across
// calls so successive frames form one continuous IIR stream.
func Apply(sections []Section, hist []History, x []float32) {
	for i, s := range sections {
		h := &hist[i]
		for n := range x {
			in := float64(x[n])
			out := s.B0*in + h.z1
			h.z1 = s.B1*in - s.A1*out + h.z2
			h.z2 = s.B2*in - s.A2*out
			x[n] = float32(out)
		}
	}
}

// NewHistory allocates a zeroed History slice matching len(sections).
func NewHistory(n int) []History {
	return make([]History, n)
}
