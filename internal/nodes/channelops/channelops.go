// Package channelops implements the differential, selector, mixer and gain
// nodes (spec.md 4.6).
package channelops

import (
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// Differential subtracts channel B from channel A, rejecting noise
// correlated across both microphones.
type Differential struct {
	graph.BaseNode
}

func NewDifferential(id string) *Differential {
	return &Differential{BaseNode: graph.NewBaseNode(id, "differential")}
}

func (d *Differential) AcceptsInput(k graphdata.Kind) bool { return k == graphdata.KindDualChannel }
func (d *Differential) OutputType() graphdata.Kind         { return graphdata.KindSingleChannel }

func (d *Differential) Process(in graphdata.Data) (graphdata.Data, error) {
	dc, ok := in.(graphdata.DualChannel)
	if !ok {
		return nil, &paerrors.NodeTypeMismatchError{Node: d.ID(), Want: "DualChannel", Got: in}
	}
	out := make([]float32, len(dc.ChannelA))
	for i := range out {
		out[i] = dc.ChannelA[i] - dc.ChannelB[i]
	}
	return graphdata.SingleChannel{
		Samples: out, SampleRate: dc.SampleRate, Timestamp: dc.Timestamp, Frame: dc.Frame,
	}, nil
}

func (d *Differential) Reset()      {}
func (d *Differential) Clone() graph.Node { c := *d; return &c }
func (d *Differential) UpdateConfig(map[string]any) (graph.ConfigOutcome, error) {
	return graph.AppliedInPlace, nil
}

// Channel selects which side of a DualChannel input is picked, a or b.
type Channel string

const (
	ChannelA Channel = "a"
	ChannelB Channel = "b"
)

// Selector extracts one channel from a DualChannel stream.
type Selector struct {
	graph.BaseNode
	which Channel
}

func NewSelector(id string, which Channel) *Selector {
	return &Selector{BaseNode: graph.NewBaseNode(id, "selector"), which: which}
}

func (s *Selector) AcceptsInput(k graphdata.Kind) bool { return k == graphdata.KindDualChannel }
func (s *Selector) OutputType() graphdata.Kind         { return graphdata.KindSingleChannel }

func (s *Selector) Process(in graphdata.Data) (graphdata.Data, error) {
	dc, ok := in.(graphdata.DualChannel)
	if !ok {
		return nil, &paerrors.NodeTypeMismatchError{Node: s.ID(), Want: "DualChannel", Got: in}
	}
	samples := dc.ChannelA
	if s.which == ChannelB {
		samples = dc.ChannelB
	}
	out := make([]float32, len(samples))
	copy(out, samples)
	return graphdata.SingleChannel{Samples: out, SampleRate: dc.SampleRate, Timestamp: dc.Timestamp, Frame: dc.Frame}, nil
}

func (s *Selector) Reset()      {}
func (s *Selector) Clone() graph.Node { c := *s; return &c }
func (s *Selector) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	if v, ok := params["channel"].(string); ok {
		s.which = Channel(v)
	}
	return graph.AppliedInPlace, nil
}

// MixMode selects how Mixer combines two channels.
type MixMode string

const (
	MixAdd      MixMode = "add"
	MixSubtract MixMode = "subtract"
	MixMean     MixMode = "mean"
	MixWeighted MixMode = "weighted"
)

// Mixer combines a DualChannel stream's two channels per MixMode.
type Mixer struct {
	graph.BaseNode
	mode       MixMode
	weightA    float64
	weightB    float64
}

func NewMixer(id string, mode MixMode, weightA, weightB float64) *Mixer {
	return &Mixer{BaseNode: graph.NewBaseNode(id, "mixer"), mode: mode, weightA: weightA, weightB: weightB}
}

func (m *Mixer) AcceptsInput(k graphdata.Kind) bool { return k == graphdata.KindDualChannel }
func (m *Mixer) OutputType() graphdata.Kind         { return graphdata.KindSingleChannel }

func (m *Mixer) Process(in graphdata.Data) (graphdata.Data, error) {
	dc, ok := in.(graphdata.DualChannel)
	if !ok {
		return nil, &paerrors.NodeTypeMismatchError{Node: m.ID(), Want: "DualChannel", Got: in}
	}
	out := make([]float32, len(dc.ChannelA))
	for i := range out {
		out[i] = m.combine(dc.ChannelA[i], dc.ChannelB[i])
	}
	return graphdata.SingleChannel{Samples: out, SampleRate: dc.SampleRate, Timestamp: dc.Timestamp, Frame: dc.Frame}, nil
}

func (m *Mixer) combine(a, b float32) float32 {
	switch m.mode {
	case MixSubtract:
		return a - b
	case MixMean:
		return (a + b) / 2
	case MixWeighted:
		return float32(float64(a)*m.weightA + float64(b)*m.weightB)
	default: // MixAdd
		return a + b
	}
}

func (m *Mixer) Reset()      {}
func (m *Mixer) Clone() graph.Node { c := *m; return &c }
func (m *Mixer) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	if v, ok := params["mode"].(string); ok {
		m.mode = MixMode(v)
	}
	if v, ok := params["weight_a"].(float64); ok {
		m.weightA = v
	}
	if v, ok := params["weight_b"].(float64); ok {
		m.weightB = v
	}
	return graph.AppliedInPlace, nil
}

// Gain scales a SingleChannel stream sample-wise.
type Gain struct {
	graph.BaseNode
	factor float64
}

func NewGain(id string, factor float64) *Gain {
	return &Gain{BaseNode: graph.NewBaseNode(id, "gain"), factor: factor}
}

func (g *Gain) AcceptsInput(k graphdata.Kind) bool { return k == graphdata.KindSingleChannel }
func (g *Gain) OutputType() graphdata.Kind         { return graphdata.KindSingleChannel }

func (g *Gain) Process(in graphdata.Data) (graphdata.Data, error) {
	sc, ok := in.(graphdata.SingleChannel)
	if !ok {
		return nil, &paerrors.NodeTypeMismatchError{Node: g.ID(), Want: "SingleChannel", Got: in}
	}
	out := make([]float32, len(sc.Samples))
	for i, s := range sc.Samples {
		out[i] = float32(float64(s) * g.factor)
	}
	return graphdata.SingleChannel{Samples: out, SampleRate: sc.SampleRate, Timestamp: sc.Timestamp, Frame: sc.Frame}, nil
}

func (g *Gain) Reset()      {}
func (g *Gain) Clone() graph.Node { c := *g; return &c }
func (g *Gain) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	if v, ok := params["factor"].(float64); ok {
		g.factor = v
	}
	return graph.AppliedInPlace, nil
}
