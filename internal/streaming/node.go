package streaming

import (
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

// Node registers a named stream in the process-wide Registry on
// construction and publishes every frame it sees onto it, re-stitching
// whatever variant it receives into the canonical audio-frame shape
// (spec.md 4.8). It is a pure pass-through: Process never alters its
// input.
type Node struct {
	graph.BaseNode
	registry  *Registry
	inputKind graphdata.Kind
}

func NewNode(id string, registry *Registry) *Node {
	registry.Register(id)
	return &Node{
		BaseNode:  graph.NewBaseNode(id, "streaming"),
		registry:  registry,
		inputKind: graphdata.KindRawAudio,
	}
}

func (n *Node) AcceptsInput(k graphdata.Kind) bool {
	return k == graphdata.KindRawAudio || k == graphdata.KindSingleChannel || k == graphdata.KindDualChannel
}

func (n *Node) OutputType() graphdata.Kind { return n.inputKind }

func (n *Node) Process(in graphdata.Data) (graphdata.Data, error) {
	n.inputKind = in.Kind()

	frame, err := graphdata.AsAudioFrame(in)
	if err != nil {
		return nil, err
	}
	if err := n.registry.Publish(n.ID(), frame); err != nil {
		return nil, err
	}
	return in, nil
}

func (n *Node) Reset() {}

func (n *Node) Clone() graph.Node {
	return NewNode(n.ID(), n.registry)
}

// Teardown unregisters the node's stream, per spec.md 4.8's
// "unregistration happens on node removal or graph teardown."
func (n *Node) Teardown() {
	n.registry.Unregister(n.ID())
}

func (n *Node) UpdateConfig(map[string]any) (graph.ConfigOutcome, error) {
	return graph.AppliedInPlace, nil
}
