// Package thermal implements the PID thermal regulator loop, the
// regulator state machine, the ThermalRegulationDriver family and a
// generic step-response auto-tuner (spec.md 4.11, 4.12, components C11
// and C12).
package thermal

// PID is an anti-windup PID controller with derivative computed on the
// measurement rather than the error, so a setpoint change never spikes
// the derivative term (spec.md 4.11).
type PID struct {
	Kp, Ki, Kd float64
	OutputMin  float64
	OutputMax  float64

	integral     float64
	prevMeasured float64
	havePrev     bool
}

// Reset clears accumulated state, used on Fault recovery.
func (p *PID) Reset() {
	p.integral = 0
	p.havePrev = false
}

// Step computes one control output given the current setpoint and
// measured value, and the elapsed time (seconds) since the previous
// step. The integral term clamps to keep a saturated output from
// winding up further (anti-windup).
func (p *PID) Step(setpoint, measured, dt float64) float64 {
	if dt <= 0 {
		dt = 1e-3
	}
	err := setpoint - measured

	candidateIntegral := p.integral + err*dt
	pTerm := p.Kp * err
	iTerm := p.Ki * candidateIntegral

	var dMeasured float64
	if p.havePrev {
		dMeasured = (measured - p.prevMeasured) / dt
	}
	dTerm := -p.Kd * dMeasured

	out := pTerm + iTerm + dTerm
	clamped := clamp(out, p.OutputMin, p.OutputMax)

	// Only integrate if doing so doesn't push further past an already
	// saturated output (conditional anti-windup).
	if clamped == out || (out > p.OutputMax && err < 0) || (out < p.OutputMin && err > 0) {
		p.integral = candidateIntegral
	}

	p.prevMeasured = measured
	p.havePrev = true

	return clamped
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
