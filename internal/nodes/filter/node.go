package filter

import (
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// TargetChannel declares which channel(s) of a DualChannel stream a filter
// node applies to.
type TargetChannel string

const (
	TargetA    TargetChannel = "a"
	TargetB    TargetChannel = "b"
	TargetBoth TargetChannel = "both"
)

// Params is the filter node's configuration (spec.md 4.5).
type Params struct {
	Response      Response
	Shape         Shape
	Order         int
	SampleRate    float64
	CenterHz      float64
	BandwidthHz   float64
	RippleDB      float64
	Target        TargetChannel
	FlushOnUpdate bool
}

// Node wraps a DSP filter cascade. It preserves frame shape and metadata;
// only sample values change. History is preserved across UpdateConfig
// calls unless FlushOnUpdate requests a bumpless-free reset.
type Node struct {
	graph.BaseNode
	params   Params
	sections []Section
	histA    []History
	histB    []History
}

func New(id string, p Params) *Node {
	n := &Node{BaseNode: graph.NewBaseNode(id, "filter"), params: p}
	n.rebuild()
	return n
}

func (n *Node) rebuild() {
	n.sections = Design(n.params.Response, n.params.Shape, n.params.Order,
		n.params.SampleRate, n.params.CenterHz, n.params.BandwidthHz, n.params.RippleDB)
	n.histA = NewHistory(len(n.sections))
	n.histB = NewHistory(len(n.sections))
}

func (n *Node) AcceptsInput(k graphdata.Kind) bool {
	return k == graphdata.KindDualChannel || k == graphdata.KindSingleChannel
}

func (n *Node) OutputType() graphdata.Kind {
	if n.params.Target == TargetBoth {
		return graphdata.KindDualChannel
	}
	return graphdata.KindSingleChannel
}

func (n *Node) Process(in graphdata.Data) (graphdata.Data, error) {
	switch v := in.(type) {
	case graphdata.SingleChannel:
		if len(v.Samples) == 0 {
			return v, nil
		}
		out := make([]float32, len(v.Samples))
		copy(out, v.Samples)
		Apply(n.sections, n.histA, out)
		return graphdata.SingleChannel{Samples: out, SampleRate: v.SampleRate, Timestamp: v.Timestamp, Frame: v.Frame}, nil

	case graphdata.DualChannel:
		if len(v.ChannelA) == 0 {
			return v, nil
		}
		a := make([]float32, len(v.ChannelA))
		copy(a, v.ChannelA)
		b := make([]float32, len(v.ChannelB))
		copy(b, v.ChannelB)

		if n.params.Target == TargetA || n.params.Target == TargetBoth {
			Apply(n.sections, n.histA, a)
		}
		if n.params.Target == TargetB || n.params.Target == TargetBoth {
			Apply(n.sections, n.histB, b)
		}
		return graphdata.DualChannel{ChannelA: a, ChannelB: b, SampleRate: v.SampleRate, Timestamp: v.Timestamp, Frame: v.Frame}, nil

	default:
		return nil, &paerrors.NodeTypeMismatchError{Node: n.ID(), Want: "SingleChannel or DualChannel", Got: in}
	}
}

func (n *Node) Reset() {
	n.histA = NewHistory(len(n.sections))
	n.histB = NewHistory(len(n.sections))
}

func (n *Node) Clone() graph.Node {
	c := &Node{BaseNode: graph.NewBaseNode(n.ID(), n.TypeTag()), params: n.params}
	c.rebuild()
	return c
}

// UpdateConfig recomputes coefficients from new parameters. History is
// preserved for a bumpless parameter change unless FlushOnUpdate is set.
func (n *Node) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	p := n.params
	if v, ok := params["response"].(string); ok {
		p.Response = Response(v)
	}
	if v, ok := params["shape"].(string); ok {
		p.Shape = Shape(v)
	}
	if v, ok := params["order"].(int); ok {
		p.Order = v
	}
	if v, ok := params["center_hz"].(float64); ok {
		p.CenterHz = v
	}
	if v, ok := params["bandwidth_hz"].(float64); ok {
		p.BandwidthHz = v
	}
	if v, ok := params["ripple_db"].(float64); ok {
		p.RippleDB = v
	}
	if v, ok := params["target_channel"].(string); ok {
		p.Target = TargetChannel(v)
	}
	if v, ok := params["flush_on_update"].(bool); ok {
		p.FlushOnUpdate = v
	}

	n.params = p
	preservedA, preservedB := n.histA, n.histB
	n.rebuild()
	if !p.FlushOnUpdate && len(preservedA) == len(n.histA) {
		n.histA = preservedA
		n.histB = preservedB
	}
	return graph.AppliedInPlace, nil
}
