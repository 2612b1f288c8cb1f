// Package action implements the UniversalActionNode and ActionDriver
// family (spec.md 4.9, component C8): a pass-through node that buffers
// recent measurements and dispatches them to a pluggable external sink.
package action

import (
	"context"
	"time"
)

// Measurement is the wire shape a driver dispatches (spec.md 6).
type Measurement struct {
	DispatchID             string     `json:"dispatch_id"`
	TimestampMs            int64      `json:"timestamp_ms"`
	ConcentrationPpm       float64    `json:"concentration_ppm"`
	PeakFrequencyHz        float64    `json:"peak_frequency_hz"`
	PeakAmplitude          float64    `json:"peak_amplitude"`
	SourceNodeID           string     `json:"source_node_id"`
	PolynomialCoefficients [5]float64 `json:"polynomial_coefficients"`
	SpectralLineID         string     `json:"spectral_line_id"`
}

// Driver is the sync→async adaptation point between the graph's hot
// path and an external sink. Each driver runs its own dispatch task; the
// graph never blocks on a driver (spec.md 4.9).
type Driver interface {
	Initialize(ctx context.Context) error
	Dispatch(ctx context.Context, m Measurement) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Health is a driver's last-known health, exposed at
// GET /api/action/drivers.
type Health struct {
	Name        string
	Healthy     bool
	LastError   string
	LastCheckAt time.Time
	Dispatched  uint64
	Failed      uint64
	Dropped     uint64
}
