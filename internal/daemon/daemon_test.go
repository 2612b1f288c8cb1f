package daemon

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioio"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paconfig"
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

func TestOrchestrator_RunDrainsFramesThroughConsumer(t *testing.T) {
	g := buildGraph(t)
	source := audioio.NewMockSource(audioio.MockConfig{SampleRate: 48000, FrameSize: 8, FrameBudget: 5})
	acqDaemon := acquisition.NewDaemon(source, testLogger())

	sharedCfg := NewSharedConfig(paconfig.DefaultConfig())
	o := New(testLogger(), sharedCfg, acqDaemon, g)

	ch, cancel := o.Consumer().Subscribe(4)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go o.Run(ctx)

	select {
	case r := <-ch:
		assert.Contains(t, r.Exec.Outputs, "a")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a result")
	}
}

func TestComputeImpact_DetectsGraphAndThermalChanges(t *testing.T) {
	prev := paconfig.DefaultConfig()
	next := paconfig.DefaultConfig()
	next.Processing.Graph.Nodes = []paconfig.NodeConfig{{ID: "x", Type: "passthrough"}}
	next.Thermal = map[string]paconfig.ThermalConfig{"r1": {DriverType: "simulation", SamplingFrequencyHz: 10}}

	impact := ComputeImpact(prev, next)
	assert.True(t, impact.Graph)
	assert.Contains(t, impact.Thermal, "r1")
}

func TestComputeImpact_NoChangeIsNoImpact(t *testing.T) {
	prev := paconfig.DefaultConfig()
	next := paconfig.DefaultConfig()
	impact := ComputeImpact(prev, next)
	assert.False(t, impact.Graph)
	assert.False(t, impact.Modbus)
	assert.Empty(t, impact.Thermal)
}

func TestThermalConfigFrom_ConvertsCelsiusToKelvin(t *testing.T) {
	c := paconfig.ThermalConfig{
		SetpointC:    25,
		SafetyLimits: paconfig.ThermalSafetyLimits{MinC: 0, MaxC: 80, MaxDutyPercent: 100},
	}
	out := ThermalConfigFrom(c)
	assert.InDelta(t, 298.15, out.Setpoint, 1e-9)
	assert.InDelta(t, 353.15, out.SafetyLimits.MaxKelvin, 1e-9)
}

func TestWatchdog_FlagsMissedHeartbeat(t *testing.T) {
	w := NewWatchdog()
	w.Register("task-a", 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Contains(t, w.Unhealthy(), "task-a")

	w.Heartbeat("task-a")
	assert.NotContains(t, w.Unhealthy(), "task-a")
}

func TestSharedConfig_SnapshotIsIndependentOfLiveReplace(t *testing.T) {
	sc := NewSharedConfig(paconfig.DefaultConfig())
	snap := sc.Snapshot()

	replaced := paconfig.DefaultConfig()
	replaced.Acquisition.SampleRate = 96000
	sc.Replace(replaced)

	assert.Equal(t, 48000, snap.Acquisition.SampleRate)
	assert.Equal(t, 96000, sc.Snapshot().Acquisition.SampleRate)
}
