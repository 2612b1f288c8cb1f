package graph

import (
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// NodeSpec is the declarative description of one node, as it would appear
// in the configuration document's processing.graph.nodes sequence.
type NodeSpec struct {
	ID         string
	Type       string
	Parameters map[string]any
}

// EdgeSpec mirrors processing.graph.connections.
type EdgeSpec struct {
	From, To string
}

// Config is the declarative graph shape the hot-reload path diffs against
// the live graph.
type Config struct {
	Nodes      []NodeSpec
	Edges      []EdgeSpec
	OutputNode string
	InputNode  string
}

// Builder constructs a Node from a NodeSpec; the daemon supplies one that
// knows every registered node type.
type Builder func(spec NodeSpec) (Node, error)

// Plan is the diff-and-patch result computed by Diff (spec.md 4.4): which
// nodes to add, remove, reconfigure in place, or replace, and which edges
// to add/remove.
type Plan struct {
	Add          []NodeSpec
	Remove       []string
	Reconfigure  []NodeSpec // same id and type tag
	Replace      []NodeSpec // same id, different type tag
	AddEdges     []EdgeSpec
	RemoveEdges  []EdgeSpec
}

// Diff computes the patch needed to bring g's structure to match cfg,
// without mutating g.
func Diff(g *Graph, cfg Config) Plan {
	var plan Plan

	currentByID := make(map[string]Node, len(g.nodes))
	for id, n := range g.nodes {
		currentByID[id] = n
	}

	newByID := make(map[string]NodeSpec, len(cfg.Nodes))
	for _, spec := range cfg.Nodes {
		newByID[spec.ID] = spec
	}

	for id, spec := range newByID {
		cur, exists := currentByID[id]
		switch {
		case !exists:
			plan.Add = append(plan.Add, spec)
		case cur.TypeTag() != spec.Type:
			plan.Replace = append(plan.Replace, spec)
		default:
			plan.Reconfigure = append(plan.Reconfigure, spec)
		}
	}

	for id := range currentByID {
		if _, stillWanted := newByID[id]; !stillWanted {
			plan.Remove = append(plan.Remove, id)
		}
	}

	currentEdges := make(map[EdgeSpec]struct{}, len(g.edges))
	for _, e := range g.edges {
		currentEdges[EdgeSpec{From: e.from, To: e.to}] = struct{}{}
	}
	newEdges := make(map[EdgeSpec]struct{}, len(cfg.Edges))
	for _, e := range cfg.Edges {
		newEdges[e] = struct{}{}
	}
	for e := range newEdges {
		if _, ok := currentEdges[e]; !ok {
			plan.AddEdges = append(plan.AddEdges, e)
		}
	}
	for e := range currentEdges {
		if _, ok := newEdges[e]; !ok {
			plan.RemoveEdges = append(plan.RemoveEdges, e)
		}
	}

	return plan
}

// snapshot captures enough of a graph's structure to restore it verbatim if
// a hot-reload attempt must be rolled back.
type snapshot struct {
	nodes     map[string]Node
	edges     []connection
	input     string
	outputs   map[string]struct{}
}

// snapshot captures the live node for every id except those in
// toClone, which are deep-cloned via their own Clone() instead. A plain
// reference copy is not enough for a node ApplyHotReload is about to
// reconfigure in place (UpdateConfig's AppliedInPlace outcome mutates
// the live node), so if a later step in the same patch fails, restoring
// a shallow copy would still hand back the already-mutated node instead
// of its pre-patch configuration.
func (g *Graph) snapshot(toClone map[string]struct{}) snapshot {
	nodesCopy := make(map[string]Node, len(g.nodes))
	for k, v := range g.nodes {
		if _, ok := toClone[k]; ok {
			nodesCopy[k] = v.Clone()
		} else {
			nodesCopy[k] = v
		}
	}
	edgesCopy := make([]connection, len(g.edges))
	copy(edgesCopy, g.edges)
	outCopy := make(map[string]struct{}, len(g.outputNodes))
	for k := range g.outputNodes {
		outCopy[k] = struct{}{}
	}
	return snapshot{nodes: nodesCopy, edges: edgesCopy, input: g.inputNode, outputs: outCopy}
}

func (g *Graph) restore(s snapshot) {
	g.nodes = s.nodes
	g.edges = s.edges
	g.inputNode = s.input
	g.outputNodes = s.outputs
	g.invalidate()
}

// ApplyHotReload computes the plan, applies it in a single critical
// section, and re-validates. On validation failure the graph is rolled
// back to its pre-patch state and the previous graph remains in force
// (spec.md 4.4, invariant 6). Structural edits never drop frames: callers
// hold this under the same lock the ProcessingConsumer uses to read, so
// the producer keeps publishing to the old graph until the swap completes.
func (g *Graph) ApplyHotReload(cfg Config, build Builder) error {
	plan := Diff(g, cfg)

	toClone := make(map[string]struct{}, len(plan.Reconfigure))
	for _, spec := range plan.Reconfigure {
		toClone[spec.ID] = struct{}{}
	}
	before := g.snapshot(toClone)

	rollback := func(err error) error {
		g.restore(before)
		return err
	}

	for _, id := range plan.Remove {
		g.RemoveNode(id)
	}

	for _, spec := range plan.Reconfigure {
		node, ok := g.nodes[spec.ID]
		if !ok {
			continue
		}
		outcome, err := node.UpdateConfig(spec.Parameters)
		if err != nil {
			return rollback(&paerrors.ConfigurationError{Field: spec.ID, Message: err.Error()})
		}
		if outcome == RequiresRebuild {
			rebuilt, err := build(spec)
			if err != nil {
				return rollback(&paerrors.ConfigurationError{Field: spec.ID, Message: err.Error()})
			}
			g.nodes[spec.ID] = rebuilt
		}
	}

	for _, spec := range plan.Replace {
		node, err := build(spec)
		if err != nil {
			return rollback(&paerrors.ConfigurationError{Field: spec.ID, Message: err.Error()})
		}
		g.nodes[spec.ID] = node
	}

	for _, spec := range plan.Add {
		node, err := build(spec)
		if err != nil {
			return rollback(&paerrors.ConfigurationError{Field: spec.ID, Message: err.Error()})
		}
		if err := g.AddNode(node); err != nil {
			return rollback(err)
		}
	}

	for _, e := range plan.RemoveEdges {
		g.Disconnect(e.From, e.To)
	}
	for _, e := range plan.AddEdges {
		if err := g.Connect(e.From, e.To); err != nil {
			return rollback(err)
		}
	}

	if cfg.InputNode != "" {
		if err := g.SetInput(cfg.InputNode); err != nil {
			return rollback(err)
		}
	}
	if cfg.OutputNode != "" {
		g.outputNodes = map[string]struct{}{cfg.OutputNode: {}}
		g.invalidate()
	}

	if err := g.Validate(); err != nil {
		return rollback(err)
	}

	return nil
}
