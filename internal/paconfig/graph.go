package paconfig

import "github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"

// ToGraphConfig translates the YAML graph section into the shape
// graph.Diff/graph.ApplyHotReload consume, keeping paconfig's document
// schema decoupled from the graph package's internal types.
func (g GraphConfig) ToGraphConfig() graph.Config {
	nodes := make([]graph.NodeSpec, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = graph.NodeSpec{ID: n.ID, Type: n.Type, Parameters: n.Parameters}
	}
	edges := make([]graph.EdgeSpec, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = graph.EdgeSpec{From: e.From, To: e.To}
	}
	return graph.Config{
		Nodes:      nodes,
		Edges:      edges,
		InputNode:  g.InputNode,
		OutputNode: g.OutputNode,
	}
}
