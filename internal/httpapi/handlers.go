package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paconfig"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/thermal"
)

// graphView is the GET /api/graph response shape: node ids, the
// connection list and per-node observability stats (spec.md 6).
type graphView struct {
	Nodes       []string                   `json:"nodes"`
	Connections []connectionView           `json:"connections"`
	Stats       map[string]graphNodeStats  `json:"stats"`
}

type connectionView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type graphNodeStats struct {
	FramesProcessed uint64  `json:"frames_processed"`
	AvgWallTimeNs   float64 `json:"avg_wall_time_ns"`
	MaxWallTimeNs   int64   `json:"max_wall_time_ns"`
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	conns := s.orch.Consumer().Connections()
	view := graphView{
		Nodes:       s.orch.Consumer().NodeIDs(),
		Connections: make([]connectionView, 0, len(conns)),
		Stats:       make(map[string]graphNodeStats),
	}
	for _, c := range conns {
		view.Connections = append(view.Connections, connectionView{From: c.From, To: c.To})
	}
	for id, st := range s.orch.Consumer().Stats() {
		view.Stats[id] = graphNodeStats{
			FramesProcessed: st.FramesProcessed,
			AvgWallTimeNs:   st.AvgWallTimeNs,
			MaxWallTimeNs:   st.MaxWallTimeNs,
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// handleConfigReload accepts a full configuration document (the same
// shape as config.yaml, as JSON) and applies it as a hot-reload through
// the orchestrator's impact-set path (spec.md 4.14).
func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	var next paconfig.Config
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, paerrors.KindConfiguration, "malformed configuration body: "+err.Error())
		return
	}
	if err := next.Validate(); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, paerrors.KindConfiguration, err.Error())
		return
	}
	if err := s.orch.ApplyReload(&next, s.build); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (s *Server) handleComputingState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.State().Snapshot())
}

type thermalSampleView struct {
	RegulatorID   string  `json:"regulator_id"`
	TemperatureK  float64 `json:"temperature_k"`
	OutputPercent float64 `json:"output_percent"`
	State         string  `json:"state"`
	ObservedAt    int64   `json:"observed_at_unix_ms"`
}

func (s *Server) handleThermalCurrent(w http.ResponseWriter, r *http.Request) {
	ids := s.orch.RegulatorIDs()
	out := make([]thermalSampleView, 0, len(ids))
	for _, id := range ids {
		reg, ok := s.orch.Regulator(id)
		if !ok {
			continue
		}
		sample := reg.LastSample()
		out = append(out, thermalSampleView{
			RegulatorID:   sample.RegulatorID,
			TemperatureK:  sample.TemperatureK,
			OutputPercent: sample.OutputPercent,
			State:         sample.State.String(),
			ObservedAt:    sample.ObservedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type tuneRequest struct {
	Method         string `json:"method"`
	StepPercent    float64 `json:"step_percent"`
	DurationS      float64 `json:"duration_s"`
	SampleMs       int     `json:"sample_interval_ms"`
}

// handleThermalTune runs a step-response auto-tune against the named
// regulator's driver and returns the fitted gains, without applying
// them; the caller re-POSTs them via /api/config to adopt them.
func (s *Server) handleThermalTune(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reg, ok := s.orch.Regulator(id)
	if !ok {
		writeErrorStatus(w, http.StatusNotFound, paerrors.KindConfiguration, fmt.Sprintf("no regulator %q", id))
		return
	}

	var req tuneRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorStatus(w, http.StatusBadRequest, paerrors.KindConfiguration, "malformed tune request: "+err.Error())
			return
		}
	}

	params := thermal.TuneParams{StepPercent: req.StepPercent}
	if req.DurationS > 0 {
		params.Duration = time.Duration(req.DurationS * float64(time.Second))
	}
	if req.SampleMs > 0 {
		params.SampleInterval = time.Duration(req.SampleMs) * time.Millisecond
	}
	if req.Method == "cohen_coon" {
		params.Method = thermal.MethodCohenCoon
	} else {
		params.Method = thermal.MethodZieglerNichols
	}

	// AutoTune drives the regulator's own driver directly, bypassing the
	// PID loop; callers are expected to have the regulator's Run task
	// stopped (or tolerate it fighting the step input) while tuning.
	result, err := thermal.AutoTune(r.Context(), reg.Driver(), params)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type driverHealthView struct {
	NodeID      string `json:"node_id"`
	Healthy     bool   `json:"healthy"`
	LastError   string `json:"last_error,omitempty"`
	Dropped     uint64 `json:"dropped"`
	CheckedAtMs int64  `json:"checked_at_unix_ms"`
}

func (s *Server) handleActionDrivers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	nodes := s.orch.ActionNodes()
	out := make([]driverHealthView, 0, len(nodes))
	for _, n := range nodes {
		view := driverHealthView{NodeID: n.ID(), Dropped: n.Dropped(), CheckedAtMs: time.Now().UnixMilli()}
		if err := n.Driver().HealthCheck(ctx); err != nil {
			view.LastError = err.Error()
		} else {
			view.Healthy = true
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}
