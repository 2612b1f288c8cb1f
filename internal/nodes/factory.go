// Package nodes is the node-type registry: it maps a configuration
// document's processing.graph.nodes[].type string to the concrete
// constructor in the relevant node-family subpackage, giving
// cmd/paanalyzerd a single graph.Builder to hand the daemon and the
// hot-reload path (spec.md 4.4's Builder contract).
package nodes

import (
	"fmt"
	"time"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/action"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/compute"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/nodes/channelops"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/nodes/filter"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/nodes/source"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/streaming"
)

// Deps bundles the shared, cross-node state a handful of node types need
// a reference to at construction time (the computing blackboard, the
// stream registry, the action-driver registry); nodes that need neither
// (filter, channelops) ignore it.
type Deps struct {
	State         *compute.State
	Streams       *streaming.Registry
	Lines         *compute.LineRegistry
	Interpreters  *action.InterpreterRegistry
	ActionDrivers map[string]action.Driver // pre-built drivers keyed by node id, for node types that need one
}

// Builder returns a graph.Builder closed over deps, resolving each
// NodeSpec's Type against the registry below.
func Builder(deps Deps) graph.Builder {
	return func(spec graph.NodeSpec) (graph.Node, error) {
		switch spec.Type {
		case "source":
			return source.New(spec.ID), nil
		case "filter":
			return filter.New(spec.ID, filterParams(spec.Parameters)), nil
		case "differential":
			return channelops.NewDifferential(spec.ID), nil
		case "selector":
			which := channelops.Channel(stringParam(spec.Parameters, "channel", "a"))
			return channelops.NewSelector(spec.ID, which), nil
		case "mixer":
			mode := channelops.MixMode(stringParam(spec.Parameters, "mode", "add"))
			wa := floatParam(spec.Parameters, "weight_a", 0.5)
			wb := floatParam(spec.Parameters, "weight_b", 0.5)
			return channelops.NewMixer(spec.ID, mode, wa, wb), nil
		case "gain":
			factor := floatParam(spec.Parameters, "factor", 1.0)
			return channelops.NewGain(spec.ID, factor), nil
		case "peak_finder":
			return compute.NewPeakFinder(spec.ID, peakParams(spec.Parameters), deps.State), nil
		case "concentration":
			return compute.NewConcentration(spec.ID, concentrationParams(spec.Parameters), deps.State), nil
		case "streaming":
			if deps.Streams == nil {
				return nil, fmt.Errorf("nodes: streaming node %q needs a stream registry", spec.ID)
			}
			return streaming.NewNode(spec.ID, deps.Streams), nil
		case "action":
			driver, ok := deps.ActionDrivers[spec.ID]
			if !ok {
				return nil, fmt.Errorf("nodes: action node %q has no configured driver", spec.ID)
			}
			return action.NewNode(spec.ID, actionParams(spec.Parameters), deps.State, driver), nil
		default:
			return nil, fmt.Errorf("nodes: unknown node type %q for node %q", spec.Type, spec.ID)
		}
	}
}

func stringParam(p map[string]any, key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func floatParam(p map[string]any, key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func intParam(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func durationSecondsParam(p map[string]any, key string, def float64) float64 {
	return floatParam(p, key, def)
}

func filterParams(p map[string]any) filter.Params {
	return filter.Params{
		Response:      filter.Response(stringParam(p, "response", string(filter.Butterworth))),
		Shape:         filter.Shape(stringParam(p, "shape", string(filter.Bandpass))),
		Order:         intParam(p, "order", 2),
		SampleRate:    floatParam(p, "sample_rate", 48000),
		CenterHz:      floatParam(p, "center_hz", 0),
		BandwidthHz:   floatParam(p, "bandwidth_hz", 0),
		RippleDB:      floatParam(p, "ripple_db", 0.5),
		Target:        filter.TargetChannel(stringParam(p, "target_channel", string(filter.TargetBoth))),
		FlushOnUpdate: boolParam(p, "flush_on_update", false),
	}
}

func boolParam(p map[string]any, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func peakParams(p map[string]any) compute.PeakParams {
	return compute.PeakParams{
		FFTSize:              intParam(p, "fft_size", 4096),
		FreqMinHz:            floatParam(p, "freq_min_hz", 0),
		FreqMaxHz:            floatParam(p, "freq_max_hz", 0),
		DetectionThreshold:   floatParam(p, "detection_threshold", 0),
		SmoothingFactor:      floatParam(p, "smoothing_factor", 0.2),
		CoherenceCount:       intParam(p, "coherence_count", 0),
		CoherenceToleranceHz: floatParam(p, "coherence_tolerance_hz", 0),
	}
}

func concentrationParams(p map[string]any) compute.ConcentrationParams {
	horizonS := durationSecondsParam(p, "staleness_horizon_s", 30)
	return compute.ConcentrationParams{
		SourcePeakID:          stringParam(p, "source_peak_id", ""),
		StalenessHorizon:      time.Duration(horizonS * float64(time.Second)),
		MinAmplitudeThreshold: floatParam(p, "min_amplitude_threshold", 0),
		Calibration: compute.Calibration{
			Polynomial: compute.Polynomial{
				A0: floatParam(p, "a0", 0),
				A1: floatParam(p, "a1", 0),
				A2: floatParam(p, "a2", 0),
				A3: floatParam(p, "a3", 0),
				A4: floatParam(p, "a4", 0),
			},
			Label: stringParam(p, "calibration_label", "production"),
		},
		MinConcentration: floatParam(p, "min_concentration", 0),
		MaxConcentration: floatParam(p, "max_concentration", 0),
	}
}

func actionParams(p map[string]any) action.Params {
	rule := action.TriggerRule{
		Mode:         action.TriggerMode(stringParam(p, "trigger_mode", string(action.TriggerEveryN))),
		EveryN:       uint64(intParam(p, "every_n", 1)),
		ThresholdPpm: floatParam(p, "threshold_ppm", 0),
		DeltaEpsilon: floatParam(p, "delta_epsilon", 0),
	}
	return action.Params{
		SourcePeakID:   stringParam(p, "source_peak_id", ""),
		SpectralLineID: stringParam(p, "spectral_line_id", ""),
		BufferSize:     intParam(p, "buffer_size", 64),
		QueueSize:      intParam(p, "queue_size", 32),
		Trigger:        rule,
	}
}
