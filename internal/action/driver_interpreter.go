package action

import (
	"context"
	"fmt"
)

// InterpreterFunc is a user-registered measurement transform: dict-in,
// dict-out, per spec.md 6's embedded-interpreter contract. No embedded
// scripting runtime ships in the pack's dependency set (no CPython
// binding, no Lua/Starlark/JS VM), so this substitutes a closure
// registry: operators register a Go function under a name at startup
// (compiled in, or loaded via Go plugin out of scope here) instead of
// an interpreted script. The dict-in/dict-out calling convention from
// the spec is preserved exactly; only the authoring language changes.
type InterpreterFunc func(map[string]any) (map[string]any, error)

// InterpreterConfig names the registered function this driver invokes.
type InterpreterConfig struct {
	FunctionName string
}

// InterpreterDriver dispatches measurements through a registered
// InterpreterFunc.
type InterpreterDriver struct {
	cfg      InterpreterConfig
	registry *InterpreterRegistry
}

func NewInterpreterDriver(cfg InterpreterConfig, registry *InterpreterRegistry) *InterpreterDriver {
	return &InterpreterDriver{cfg: cfg, registry: registry}
}

func (d *InterpreterDriver) Initialize(ctx context.Context) error {
	if _, ok := d.registry.Lookup(d.cfg.FunctionName); !ok {
		return fmt.Errorf("action/interpreter: function %q not registered", d.cfg.FunctionName)
	}
	return nil
}

func (d *InterpreterDriver) Dispatch(ctx context.Context, m Measurement) error {
	fn, ok := d.registry.Lookup(d.cfg.FunctionName)
	if !ok {
		return fmt.Errorf("action/interpreter: function %q not registered", d.cfg.FunctionName)
	}
	dict := measurementToDict(m)
	_, err := fn(dict)
	return err
}

func (d *InterpreterDriver) HealthCheck(ctx context.Context) error {
	_, ok := d.registry.Lookup(d.cfg.FunctionName)
	if !ok {
		return fmt.Errorf("action/interpreter: function %q not registered", d.cfg.FunctionName)
	}
	return nil
}

func (d *InterpreterDriver) Shutdown(ctx context.Context) error { return nil }

func measurementToDict(m Measurement) map[string]any {
	return map[string]any{
		"dispatch_id":             m.DispatchID,
		"timestamp_ms":            m.TimestampMs,
		"concentration_ppm":       m.ConcentrationPpm,
		"peak_frequency_hz":       m.PeakFrequencyHz,
		"peak_amplitude":          m.PeakAmplitude,
		"source_node_id":          m.SourceNodeID,
		"polynomial_coefficients": m.PolynomialCoefficients,
		"spectral_line_id":        m.SpectralLineID,
	}
}
