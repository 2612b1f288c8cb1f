package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/action"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioio"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/compute"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/daemon"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paconfig"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/streaming"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/thermal"
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

func noopBuild(spec graph.NodeSpec) (graph.Node, error) {
	return newPassthrough(spec.ID), nil
}

func newTestServer(t *testing.T) (*Server, *daemon.Orchestrator) {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode(newPassthrough("a")))
	require.NoError(t, g.SetInput("a"))
	require.NoError(t, g.SetOutput("a"))
	require.NoError(t, g.Validate())

	source := audioio.NewMockSource(audioio.MockConfig{SampleRate: 48000, FrameSize: 8, FrameBudget: 1})
	acqDaemon := acquisition.NewDaemon(source, testLogger())
	sharedCfg := daemon.NewSharedConfig(paconfig.DefaultConfig())
	orch := daemon.New(testLogger(), sharedCfg, acqDaemon, g)

	return New(orch, noopBuild, testLogger()), orch
}

func TestHandleGraph_ReturnsNodesAndConnections(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/graph", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view graphView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Contains(t, view.Nodes, "a")
}

func TestHandleComputingState_ReturnsSnapshot(t *testing.T) {
	s, orch := newTestServer(t)
	orch.State().PutPeak(compute.PeakResult{NodeID: "peak1", FrequencyHz: 1500, Amplitude: 0.2, ObservedAt: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/api/computing/state", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap compute.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap.Peaks, "peak1")
}

func TestHandleThermalCurrent_ReportsRegulatorSamples(t *testing.T) {
	s, orch := newTestServer(t)
	driver := thermal.NewSimulationDriver(thermal.SimulationConfig{})
	cfg := thermal.Config{
		Kp: 1, Ki: 0, Kd: 0,
		Setpoint:             300,
		SafetyLimits:         thermal.SafetyLimits{MinKelvin: 250, MaxKelvin: 400, MaxDutyPercent: 100},
		SamplingFrequencyHz:  10,
		Conversion:           thermal.TemperatureConversion{},
		Mapping:              thermal.MappingHBridge,
	}
	reg := thermal.NewRegulator("cell-1", driver, cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	orch.AddRegulator(ctx, "cell-1", reg)
	time.Sleep(60 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/thermal/current", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []thermalSampleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "cell-1", out[0].RegulatorID)
}

func TestHandleActionDrivers_ReportsHealth(t *testing.T) {
	s, orch := newTestServer(t)
	reg := action.NewInterpreterRegistry()
	reg.Register("identity", func(m map[string]any) (map[string]any, error) { return m, nil })
	driver := action.NewInterpreterDriver(action.InterpreterConfig{FunctionName: "identity"}, reg)
	node := action.NewNode("dispatch1", action.Params{Trigger: action.TriggerRule{Mode: action.TriggerEveryN, EveryN: 1}}, orch.State(), driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.AddActionNode(ctx, node)

	req := httptest.NewRequest(http.MethodGet, "/api/action/drivers", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []driverHealthView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "dispatch1", out[0].NodeID)
	assert.True(t, out[0].Healthy)
}

func TestHandleConfigReload_RejectsInvalidConfig(t *testing.T) {
	s, _ := newTestServer(t)
	body := []byte(`{"Acquisition":{"Source":"not_a_real_source"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "configuration", errBody.Kind)
}

func TestHandleAudioStream_EmitsSSEFrame(t *testing.T) {
	s, orch := newTestServer(t)
	bcast := orch.Streams().Register("scope1")

	req := httptest.NewRequest(http.MethodGet, "/api/audio/stream/scope1", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	bcast.Publish(&audioframe.Frame{ChannelA: []float32{0.1}, ChannelB: []float32{0.2}, SampleRate: 48000, FrameNumber: 1})

	<-done
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	found := false
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			found = true
		}
	}
	assert.True(t, found, "expected at least one SSE data line")
}

func TestHandleAudioStream_UnknownNodeReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/audio/stream/missing", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
