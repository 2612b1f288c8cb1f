package compute

import (
	"time"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

// Polynomial is C(A) = a0 + a1*A + a2*A^2 + a3*A^3 + a4*A^4, evaluated in
// double precision per spec.md 4.7.
type Polynomial struct {
	A0, A1, A2, A3, A4 float64
}

func (p Polynomial) Evaluate(amplitude float64) float64 {
	a := amplitude
	return p.A0 + p.A1*a + p.A2*a*a + p.A3*a*a*a + p.A4*a*a*a*a
}

// Calibration records when a polynomial's coefficients were last fitted
// and by whom, so a concentration node's config can distinguish a
// production model from a candidate under evaluation without the graph
// caring which is "active" (spec.md's supplemented "production vs
// candidate model" scenario).
type Calibration struct {
	Polynomial Polynomial
	FittedAt   time.Time
	FittedBy   string
	Label      string // e.g. "production", "candidate-2026-07"
}

// ConcentrationParams configures a Concentration node (spec.md 4.7).
type ConcentrationParams struct {
	SourcePeakID       string // empty means "most recent across all producers"
	StalenessHorizon   time.Duration
	MinAmplitudeThreshold float64
	Calibration        Calibration
	MinConcentration   float64
	MaxConcentration   float64
}

// Concentration is a pass-through node reading a PeakResult from shared
// State, evaluating a calibration polynomial against its amplitude and
// writing a ConcentrationResult back into State.
type Concentration struct {
	graph.BaseNode
	params    ConcentrationParams
	state     *State
	inputKind graphdata.Kind
}

func NewConcentration(id string, p ConcentrationParams, state *State) *Concentration {
	return &Concentration{
		BaseNode:  graph.NewBaseNode(id, "concentration"),
		params:    p,
		state:     state,
		inputKind: graphdata.KindSingleChannel,
	}
}

func (n *Concentration) AcceptsInput(k graphdata.Kind) bool {
	return true // pass-through; concentration reads shared state, not its own input payload
}

func (n *Concentration) OutputType() graphdata.Kind { return n.inputKind }

func (n *Concentration) Process(in graphdata.Data) (graphdata.Data, error) {
	n.inputKind = in.Kind()

	peak, ok := n.resolvePeak()
	if !ok {
		return in, nil
	}
	now := nowFunc()
	if !Fresh(peak.ObservedAt, now, n.params.StalenessHorizon) {
		return in, nil
	}
	if peak.Amplitude < n.params.MinAmplitudeThreshold {
		return in, nil
	}

	ppm := n.params.Calibration.Polynomial.Evaluate(peak.Amplitude)
	if ppm < n.params.MinConcentration {
		ppm = n.params.MinConcentration
	}
	if ppm > n.params.MaxConcentration {
		ppm = n.params.MaxConcentration
	}
	result := float32(ppm)

	n.state.PutConcentration(ConcentrationResult{
		NodeID:           n.ID(),
		SourcePeakID:     peak.NodeID,
		ConcentrationPpm: float64(result),
		ObservedAt:       now,
	})
	n.state.UpdatePeakConcentration(peak.NodeID, float64(result), n.params.Calibration.Polynomial)

	return in, nil
}

func (n *Concentration) resolvePeak() (PeakResult, bool) {
	if n.params.SourcePeakID != "" {
		return n.state.Peak(n.params.SourcePeakID)
	}
	return n.state.MostRecentPeak()
}

func (n *Concentration) Reset() {}

func (n *Concentration) Clone() graph.Node {
	return NewConcentration(n.ID(), n.params, n.state)
}

func (n *Concentration) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	p := n.params
	if v, ok := params["source_peak_id"].(string); ok {
		p.SourcePeakID = v
	}
	if v, ok := params["min_amplitude_threshold"].(float64); ok {
		p.MinAmplitudeThreshold = v
	}
	if v, ok := params["min_concentration"].(float64); ok {
		p.MinConcentration = v
	}
	if v, ok := params["max_concentration"].(float64); ok {
		p.MaxConcentration = v
	}
	if v, ok := params["staleness_horizon_ms"].(int); ok {
		p.StalenessHorizon = time.Duration(v) * time.Millisecond
	}
	if coeffs, ok := params["polynomial"].(map[string]float64); ok {
		p.Calibration.Polynomial = Polynomial{
			A0: coeffs["a0"], A1: coeffs["a1"], A2: coeffs["a2"], A3: coeffs["a3"], A4: coeffs["a4"],
		}
		p.Calibration.FittedAt = nowFunc()
		if label, ok := params["calibration_label"].(string); ok {
			p.Calibration.Label = label
		}
	}
	n.params = p
	return graph.AppliedInPlace, nil
}
