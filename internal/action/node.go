package action

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/compute"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

// TriggerMode selects when a measurement is dispatched, per spec.md 4.9:
// "every M frames", "on threshold crossing", or "on change greater than
// epsilon".
type TriggerMode string

const (
	TriggerEveryN      TriggerMode = "every_n_frames"
	TriggerThreshold   TriggerMode = "threshold_crossing"
	TriggerChangeDelta TriggerMode = "change_delta"
)

// TriggerRule configures when UniversalActionNode enqueues a dispatch.
type TriggerRule struct {
	Mode          TriggerMode
	EveryN        uint64
	ThresholdPpm  float64
	DeltaEpsilon  float64
}

// Params configures a UniversalActionNode.
type Params struct {
	SourcePeakID   string // resolves the same way Concentration does: explicit id or most recent
	SpectralLineID string
	BufferSize     int
	QueueSize      int
	Trigger        TriggerRule
}

// DispatchRequest is enqueued onto the bounded channel the dispatcher
// task drains.
type DispatchRequest struct {
	Measurement Measurement
}

// Node is a pass-through: on each frame it forms a Measurement from the
// latest shared-state values, pushes it into the ring buffer, and
// conditionally enqueues a DispatchRequest for the async dispatcher
// (spec.md 4.9). It owns one Driver and one Buffer.
type Node struct {
	graph.BaseNode
	params    Params
	state     *compute.State
	driver    Driver
	buffer    *Buffer
	queue     chan DispatchRequest
	inputKind graphdata.Kind

	frameCount   uint64
	lastPpm      float64
	haveLastPpm  bool
	aboveThresh  bool
	dropped      atomic.Uint64
}

func NewNode(id string, p Params, state *compute.State, driver Driver) *Node {
	if p.BufferSize <= 0 {
		p.BufferSize = 64
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 32
	}
	return &Node{
		BaseNode:  graph.NewBaseNode(id, "action"),
		params:    p,
		state:     state,
		driver:    driver,
		buffer:    NewBuffer(p.BufferSize),
		queue:     make(chan DispatchRequest, p.QueueSize),
		inputKind: graphdata.KindRawAudio,
	}
}

func (n *Node) AcceptsInput(k graphdata.Kind) bool { return true }
func (n *Node) OutputType() graphdata.Kind         { return n.inputKind }

// Driver exposes the dispatch driver for health-check listing
// (GET /api/action/drivers).
func (n *Node) Driver() Driver { return n.driver }

// Queue exposes the bounded dispatch-request channel for the dispatcher
// task to drain. Overflow (a full queue) drops the oldest request and
// increments the drop counter, per spec.md 5's action-driver-queue
// discipline.
func (n *Node) Queue() <-chan DispatchRequest { return n.queue }

func (n *Node) Dropped() uint64 { return n.dropped.Load() }

func (n *Node) Buffer() *Buffer { return n.buffer }

func (n *Node) Process(in graphdata.Data) (graphdata.Data, error) {
	n.inputKind = in.Kind()
	n.frameCount++

	peak, ok := n.resolvePeak()
	if !ok {
		return in, nil
	}

	m := Measurement{
		DispatchID:      uuid.NewString(),
		TimestampMs:     peak.ObservedAt.UnixMilli(),
		ConcentrationPpm: peak.ConcentrationPpm,
		PeakFrequencyHz: peak.FrequencyHz,
		PeakAmplitude:   peak.Amplitude,
		SourceNodeID:    peak.NodeID,
		PolynomialCoefficients: [5]float64{
			peak.Polynomial.A0, peak.Polynomial.A1, peak.Polynomial.A2,
			peak.Polynomial.A3, peak.Polynomial.A4,
		},
		SpectralLineID:  n.params.SpectralLineID,
	}
	n.buffer.Push(m)

	if n.shouldDispatch(m) {
		n.enqueue(DispatchRequest{Measurement: m})
	}

	return in, nil
}

func (n *Node) resolvePeak() (compute.PeakResult, bool) {
	if n.params.SourcePeakID != "" {
		return n.state.Peak(n.params.SourcePeakID)
	}
	return n.state.MostRecentPeak()
}

func (n *Node) shouldDispatch(m Measurement) bool {
	switch n.params.Trigger.Mode {
	case TriggerThreshold:
		above := m.ConcentrationPpm >= n.params.Trigger.ThresholdPpm
		crossed := above != n.aboveThresh
		n.aboveThresh = above
		return crossed
	case TriggerChangeDelta:
		if !n.haveLastPpm {
			n.haveLastPpm = true
			n.lastPpm = m.ConcentrationPpm
			return true
		}
		delta := m.ConcentrationPpm - n.lastPpm
		if delta < 0 {
			delta = -delta
		}
		if delta > n.params.Trigger.DeltaEpsilon {
			n.lastPpm = m.ConcentrationPpm
			return true
		}
		return false
	default: // TriggerEveryN
		n2 := n.params.Trigger.EveryN
		if n2 == 0 {
			n2 = 1
		}
		return n.frameCount%n2 == 0
	}
}

// enqueue never blocks the producer: a full queue drops the oldest
// pending request, per spec.md 5.
func (n *Node) enqueue(req DispatchRequest) {
	for {
		select {
		case n.queue <- req:
			return
		default:
		}
		select {
		case <-n.queue:
			n.dropped.Add(1)
		default:
		}
	}
}

func (n *Node) Reset() {
	n.frameCount = 0
	n.haveLastPpm = false
	n.aboveThresh = false
}

func (n *Node) Clone() graph.Node {
	return NewNode(n.ID(), n.params, n.state, n.driver)
}

func (n *Node) UpdateConfig(params map[string]any) (graph.ConfigOutcome, error) {
	p := n.params
	if v, ok := params["source_peak_id"].(string); ok {
		p.SourcePeakID = v
	}
	if v, ok := params["spectral_line_id"].(string); ok {
		p.SpectralLineID = v
	}
	if v, ok := params["trigger_mode"].(string); ok {
		p.Trigger.Mode = TriggerMode(v)
	}
	if v, ok := params["trigger_every_n"].(uint64); ok {
		p.Trigger.EveryN = v
	}
	if v, ok := params["trigger_threshold_ppm"].(float64); ok {
		p.Trigger.ThresholdPpm = v
	}
	if v, ok := params["trigger_delta_epsilon"].(float64); ok {
		p.Trigger.DeltaEpsilon = v
	}
	n.params = p
	return graph.AppliedInPlace, nil
}

// RunDispatcher drains the node's queue and calls the driver for each
// request until ctx is cancelled. Each dispatch error is passed to
// onError (when non-nil) for the caller to log; it never stops the loop.
// The node keeps no count of dispatch errors.
func (n *Node) RunDispatcher(ctx context.Context, onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-n.queue:
			if err := n.driver.Dispatch(ctx, req.Measurement); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
