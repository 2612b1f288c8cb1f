// Package source implements the graph's input-adapter node: the one node
// type whose AcceptsInput admits graphdata.KindRawAudio, re-stitching the
// frame straight off the acquisition broadcast into the typed DualChannel
// payload every downstream node (filter, channelops) expects (spec.md 3,
// 4.6). Every processing graph's configured input_node is one of these.
package source

import (
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// Node is a pure pass-through: it changes representation, never values.
type Node struct {
	graph.BaseNode
}

func New(id string) *Node {
	return &Node{BaseNode: graph.NewBaseNode(id, "source")}
}

func (n *Node) AcceptsInput(k graphdata.Kind) bool { return k == graphdata.KindRawAudio }
func (n *Node) OutputType() graphdata.Kind         { return graphdata.KindDualChannel }

func (n *Node) Process(in graphdata.Data) (graphdata.Data, error) {
	raw, ok := in.(graphdata.RawAudio)
	if !ok {
		return nil, &paerrors.NodeTypeMismatchError{Node: n.ID(), Want: "RawAudio", Got: in}
	}
	f := raw.Frame
	if f == nil || len(f.ChannelA) == 0 {
		return nil, &paerrors.NodeEmptyInputError{Node: n.ID()}
	}
	return graphdata.DualChannel{
		ChannelA:   f.ChannelA,
		ChannelB:   f.ChannelB,
		SampleRate: f.SampleRate,
		Timestamp:  f.TimestampMs,
		Frame:      f.FrameNumber,
	}, nil
}

func (n *Node) Reset() {}
func (n *Node) Clone() graph.Node {
	return &Node{BaseNode: graph.NewBaseNode(n.ID(), n.TypeTag())}
}
func (n *Node) UpdateConfig(map[string]any) (graph.ConfigOutcome, error) {
	return graph.AppliedInPlace, nil
}
