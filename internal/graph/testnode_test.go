package graph

import (
	"fmt"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

// passthroughNode is a minimal Node used across graph tests: it accepts one
// Kind and emits another unmodified (identity) or mapped payload.
type passthroughNode struct {
	BaseNode
	accepts graphdata.Kind
	output  graphdata.Kind
	fail    bool
	failErr error // overrides the generic "forced failure" error when set
}

func newPassthrough(id string, accepts, output graphdata.Kind) *passthroughNode {
	return &passthroughNode{BaseNode: NewBaseNode(id, "passthrough"), accepts: accepts, output: output}
}

func (n *passthroughNode) AcceptsInput(k graphdata.Kind) bool { return k == n.accepts }
func (n *passthroughNode) OutputType() graphdata.Kind         { return n.output }

func (n *passthroughNode) Process(in graphdata.Data) (graphdata.Data, error) {
	if n.fail {
		if n.failErr != nil {
			return nil, n.failErr
		}
		return nil, fmt.Errorf("forced failure")
	}
	return in, nil
}

func (n *passthroughNode) Reset()      {}
func (n *passthroughNode) Clone() Node { c := *n; return &c }
func (n *passthroughNode) UpdateConfig(params map[string]any) (ConfigOutcome, error) {
	if v, ok := params["fail"].(bool); ok {
		n.fail = v
	}
	return AppliedInPlace, nil
}

// mixerTestNode accepts RawAudio fan-in and merges it by forwarding the
// first input, to exercise the MergeInputs path.
type mixerTestNode struct {
	BaseNode
}

func newMixerTestNode(id string) *mixerTestNode {
	return &mixerTestNode{BaseNode: NewBaseNode(id, "mixer")}
}

func (n *mixerTestNode) AcceptsInput(k graphdata.Kind) bool { return k == graphdata.KindRawAudio }
func (n *mixerTestNode) OutputType() graphdata.Kind         { return graphdata.KindRawAudio }
func (n *mixerTestNode) Process(in graphdata.Data) (graphdata.Data, error) { return in, nil }
func (n *mixerTestNode) Reset()                                            {}
func (n *mixerTestNode) Clone() Node                                       { c := *n; return &c }
func (n *mixerTestNode) UpdateConfig(map[string]any) (ConfigOutcome, error) {
	return AppliedInPlace, nil
}
func (n *mixerTestNode) MergeInputs(inputs []graphdata.Data) (graphdata.Data, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}
	return inputs[0], nil
}
