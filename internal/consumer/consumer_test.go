package consumer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

type passthrough struct {
	graph.BaseNode
}

func newPassthrough(id string) *passthrough {
	return &passthrough{BaseNode: graph.NewBaseNode(id, "passthrough")}
}

func (p *passthrough) AcceptsInput(k graphdata.Kind) bool { return true }
func (p *passthrough) OutputType() graphdata.Kind         { return graphdata.KindRawAudio }
func (p *passthrough) Process(in graphdata.Data) (graphdata.Data, error) {
	return in, nil
}
func (p *passthrough) Reset()            {}
func (p *passthrough) Clone() graph.Node { c := *p; return &c }
func (p *passthrough) UpdateConfig(map[string]any) (graph.ConfigOutcome, error) {
	return graph.AppliedInPlace, nil
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func buildGraph(t *testing.T) *graph.Graph {
	g := graph.New()
	require.NoError(t, g.AddNode(newPassthrough("a")))
	require.NoError(t, g.SetInput("a"))
	require.NoError(t, g.SetOutput("a"))
	require.NoError(t, g.Validate())
	return g
}

func TestConsumer_RunPublishesResults(t *testing.T) {
	g := buildGraph(t)
	c := New(g, testLogger())

	b := acquisition.NewBroadcaster()
	sub := b.Subscribe(200, 48000, 4)

	ch, cancel := c.Subscribe(4)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	go c.Run(ctx, sub)

	b.Publish(&audioframe.Frame{ChannelA: []float32{1}, ChannelB: []float32{1}, SampleRate: 48000, FrameNumber: 1})

	select {
	case r := <-ch:
		require.Equal(t, uint64(1), r.FrameNumber)
		require.Contains(t, r.Exec.Outputs, "a")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
	stop()
}

func TestConsumer_ApplyHotReloadInstallsConfiguredNodes(t *testing.T) {
	g := buildGraph(t)
	c := New(g, testLogger())

	cfg := graph.Config{
		Nodes:      []graph.NodeSpec{{ID: "a", Type: "passthrough"}, {ID: "b", Type: "passthrough"}},
		Edges:      []graph.EdgeSpec{{From: "a", To: "b"}},
		InputNode:  "a",
		OutputNode: "b",
	}
	build := func(spec graph.NodeSpec) (graph.Node, error) {
		return newPassthrough(spec.ID), nil
	}

	require.NoError(t, c.ApplyHotReload(cfg, build))
	require.ElementsMatch(t, []string{"a", "b"}, c.NodeIDs())
}
