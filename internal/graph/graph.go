package graph

import (
	"errors"
	"time"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// mixerNode is implemented by nodes allowed to accept more than one
// predecessor edge (spec.md 4.3: "Multiple inputs to a non-mixer node are
// rejected at validation").
type mixerNode interface {
	MergeInputs(inputs []graphdata.Data) (graphdata.Data, error)
}

// MixMode selects how a mixer node combines two equal-length channels.
type MixMode string

const (
	MixAdd      MixMode = "add"
	MixSubtract MixMode = "subtract"
	MixMean     MixMode = "mean"
	MixWeighted MixMode = "weighted"
)

// connection is a directed edge (from, to).
type connection struct {
	from, to string
}

// Graph holds nodes and edges, a cached topological order, and the
// designated input/output terminals (spec.md 3, C6).
type Graph struct {
	nodes       map[string]Node
	edges       []connection
	inputNode   string
	outputNodes map[string]struct{}

	topo      []string
	validated bool
}

func New() *Graph {
	return &Graph{
		nodes:       make(map[string]Node),
		outputNodes: make(map[string]struct{}),
	}
}

// AddNode inserts a node. IDs must be unique within the graph.
func (g *Graph) AddNode(n Node) error {
	if _, exists := g.nodes[n.ID()]; exists {
		return &paerrors.ConfigurationError{Field: "node.id", Message: "duplicate node id " + n.ID()}
	}
	g.nodes[n.ID()] = n
	g.invalidate()
	return nil
}

// RemoveNode deletes a node and any edges touching it.
func (g *Graph) RemoveNode(id string) {
	delete(g.nodes, id)
	delete(g.outputNodes, id)
	if g.inputNode == id {
		g.inputNode = ""
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.from != id && e.to != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.invalidate()
}

// Connect adds a directed edge. Self-loops are rejected immediately;
// cycles and type mismatches are caught by Validate.
func (g *Graph) Connect(from, to string) error {
	if from == to {
		return &paerrors.GraphStructuralError{Reason: paerrors.ReasonCyclicConnection, From: from, To: to}
	}
	g.edges = append(g.edges, connection{from: from, to: to})
	g.invalidate()
	return nil
}

// Disconnect removes a matching edge, if present.
func (g *Graph) Disconnect(from, to string) {
	kept := g.edges[:0]
	for _, e := range g.edges {
		if !(e.from == from && e.to == to) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.invalidate()
}

func (g *Graph) SetInput(id string) error {
	if _, ok := g.nodes[id]; !ok {
		return &paerrors.GraphStructuralError{Reason: paerrors.ReasonMissingNode, From: id}
	}
	g.inputNode = id
	g.invalidate()
	return nil
}

func (g *Graph) SetOutput(id string) error {
	if _, ok := g.nodes[id]; !ok {
		return &paerrors.GraphStructuralError{Reason: paerrors.ReasonMissingNode, From: id}
	}
	g.outputNodes[id] = struct{}{}
	g.invalidate()
	return nil
}

func (g *Graph) invalidate() {
	g.validated = false
	g.topo = nil
}

func (g *Graph) predecessors(id string) []string {
	var preds []string
	for _, e := range g.edges {
		if e.to == id {
			preds = append(preds, e.from)
		}
	}
	return preds
}

func (g *Graph) successors(id string) []string {
	var succs []string
	for _, e := range g.edges {
		if e.from == id {
			succs = append(succs, e.to)
		}
	}
	return succs
}

// Validate recomputes and caches the topological order, failing with a
// *paerrors.GraphStructuralError on the first violation found. Checks run
// in this order: missing node (edge endpoint or input node), multiple
// inputs to a non-mixer node, cycle, type mismatch, unreachable output.
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.nodes[e.from]; !ok {
			return &paerrors.GraphStructuralError{Reason: paerrors.ReasonMissingNode, From: e.from}
		}
		if _, ok := g.nodes[e.to]; !ok {
			return &paerrors.GraphStructuralError{Reason: paerrors.ReasonMissingNode, From: e.to}
		}
	}

	if g.inputNode == "" {
		return &paerrors.GraphStructuralError{Reason: paerrors.ReasonMissingNode, From: "<input>"}
	}

	for id := range g.nodes {
		if id == g.inputNode {
			continue
		}
		preds := g.predecessors(id)
		if len(preds) > 1 {
			if _, isMixer := g.nodes[id].(mixerNode); !isMixer {
				return &paerrors.GraphStructuralError{Reason: paerrors.ReasonMultipleInputs, To: id}
			}
		}
	}

	topo, err := topoSort(g.nodes, g.edges)
	if err != nil {
		return err
	}

	for _, e := range g.edges {
		fromType := g.nodes[e.from].OutputType()
		if !g.nodes[e.to].AcceptsInput(fromType) {
			return &paerrors.GraphStructuralError{
				Reason: paerrors.ReasonTypeMismatch, From: e.from, To: e.to,
				FromType: string(fromType), ToType: g.nodes[e.to].TypeTag(),
			}
		}
	}

	for outID := range g.outputNodes {
		if !reachableFrom(g.inputNode, outID, g.edges) {
			return &paerrors.GraphStructuralError{Reason: paerrors.ReasonUnreachableOutput, To: outID}
		}
	}

	g.topo = topo
	g.validated = true
	return nil
}

func reachableFrom(start, target string, edges []connection) bool {
	if start == target {
		return true
	}
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e.to)
	}
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func topoSort(nodes map[string]Node, edges []connection) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for id := range nodes {
		indegree[id] = 0
	}
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e.to)
		indegree[e.to]++
	}

	var queue []string
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		// Pop deterministically (smallest id) so topo order is stable
		// across reloads with the same structure.
		minIdx := 0
		for i := 1; i < len(queue); i++ {
			if queue[i] < queue[minIdx] {
				minIdx = i
			}
		}
		cur := queue[minIdx]
		queue = append(queue[:minIdx], queue[minIdx+1:]...)
		order = append(order, cur)

		for _, next := range adj[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &paerrors.GraphStructuralError{Reason: paerrors.ReasonCyclicConnection}
	}
	return order, nil
}

// ExecutionResult is the per-output-node payload set produced by one
// Execute call, plus any degraded-node diagnostics.
type ExecutionResult struct {
	Outputs  map[string]graphdata.Data
	Degraded map[string]error
}

// Execute runs the cached topological order once, threading ProcessingData
// forward (spec.md 4.3). If Validate has not been called (or the graph was
// mutated since), it validates first.
func (g *Graph) Execute(input graphdata.Data) (*ExecutionResult, error) {
	if !g.validated {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}

	scratch := make(map[string]graphdata.Data, len(g.topo))
	degraded := make(map[string]error)

	for _, id := range g.topo {
		node := g.nodes[id]

		var in graphdata.Data
		if id == g.inputNode {
			in = input
		} else {
			preds := g.predecessors(id)
			merged, err := mergeInputs(node, preds, scratch)
			if err != nil {
				degraded[id] = err
				continue
			}
			in = merged
		}

		if in == nil {
			continue
		}

		start := time.Now()
		out, err := node.Process(in)
		elapsed := time.Since(start)

		if bn, ok := nodeTimer(node); ok {
			bn.RecordTiming(elapsed.Nanoseconds())
		}

		if err != nil {
			degraded[id] = &paerrors.NodeRuntimeError{NodeID: id, Kind_: classifyNodeErr(err)}
			continue
		}
		scratch[id] = out
	}

	outputs := make(map[string]graphdata.Data, len(g.outputNodes))
	for outID := range g.outputNodes {
		if v, ok := scratch[outID]; ok {
			outputs[outID] = v
		}
	}

	return &ExecutionResult{Outputs: outputs, Degraded: degraded}, nil
}

// classifyNodeErr maps a node's Process error to one of the
// RuntimeKind constants when the node flagged its cause with one of
// paerrors's marker types, falling back to the raw error text for
// anything node-specific that doesn't fit those two buckets.
func classifyNodeErr(err error) string {
	var typeMismatch *paerrors.NodeTypeMismatchError
	if errors.As(err, &typeMismatch) {
		return paerrors.RuntimeKindTypeMismatch
	}
	var emptyInput *paerrors.NodeEmptyInputError
	if errors.As(err, &emptyInput) {
		return paerrors.RuntimeKindEmptyInput
	}
	return err.Error()
}

// nodeTimer lets Execute record timing through the embedded BaseNode
// without forcing every Node implementation to expose it directly.
type timed interface {
	RecordTiming(int64)
}

func nodeTimer(n Node) (timed, bool) {
	t, ok := n.(timed)
	return t, ok
}

func mergeInputs(node Node, preds []string, scratch map[string]graphdata.Data) (graphdata.Data, error) {
	if len(preds) == 0 {
		return nil, nil
	}
	if len(preds) == 1 {
		v, ok := scratch[preds[0]]
		if !ok {
			return nil, nil
		}
		return v, nil
	}
	// Multiple predecessors only reach here for mixer-capable nodes;
	// Validate() already rejected the non-mixer case.
	mixer, ok := node.(mixerNode)
	if !ok {
		return nil, &paerrors.GraphStructuralError{Reason: paerrors.ReasonMultipleInputs, To: node.ID()}
	}
	var inputs []graphdata.Data
	for _, p := range preds {
		if v, ok := scratch[p]; ok {
			inputs = append(inputs, v)
		}
	}
	return mixer.MergeInputs(inputs)
}

// Stats returns a snapshot of node IDs to their stats, for the
// observability plane.
func (g *Graph) Stats() map[string]NodeStats {
	out := make(map[string]NodeStats, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n.Stats()
	}
	return out
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns every node id in the graph, unordered.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Connections returns a copy of the edge set.
func (g *Graph) Connections() [](struct{ From, To string }) {
	out := make([]struct{ From, To string }, len(g.edges))
	for i, e := range g.edges {
		out[i] = struct{ From, To string }{From: e.from, To: e.to}
	}
	return out
}
