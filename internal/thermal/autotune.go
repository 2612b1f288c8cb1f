package thermal

import (
	"context"
	"fmt"
	"time"
)

// TuneMethod selects the classical step-response identification used to
// derive PID gains (spec.md 4.11/4.12: a generic auto-tuner that works
// against any Driver implementation without knowing which).
type TuneMethod string

const (
	MethodZieglerNichols TuneMethod = "ziegler_nichols"
	MethodCohenCoon      TuneMethod = "cohen_coon"
)

// TuneParams configures an open-loop step test: apply StepPercent output
// for up to Duration, sampling at SampleInterval, then fit a first-order-
// plus-dead-time model to the response.
type TuneParams struct {
	Method        TuneMethod
	StepPercent   float64
	Duration      time.Duration
	SampleInterval time.Duration
}

func (p TuneParams) withDefaults() TuneParams {
	if p.Method == "" {
		p.Method = MethodZieglerNichols
	}
	if p.StepPercent == 0 {
		p.StepPercent = 50
	}
	if p.Duration <= 0 {
		p.Duration = 2 * time.Minute
	}
	if p.SampleInterval <= 0 {
		p.SampleInterval = 500 * time.Millisecond
	}
	return p
}

// TuneResult is the identified process model and the derived gains.
type TuneResult struct {
	Method        TuneMethod
	ProcessGainKPerPercent float64 // steady-state delta-temp per percent step
	DeadTimeSeconds        float64
	TimeConstantSeconds    float64
	Kp, Ki, Kd             float64
}

// AutoTune drives driver open-loop with a step input and fits a
// first-order-plus-dead-time (FOPDT) model via the reaction-curve
// method, then derives PID gains using the selected classical tuning
// rule. The regulator must not be running concurrently against the same
// driver during this call.
func AutoTune(ctx context.Context, driver Driver, params TuneParams) (TuneResult, error) {
	p := params.withDefaults()

	baseline, err := driver.ReadTemperatureCelsius(ctx)
	if err != nil {
		return TuneResult{}, fmt.Errorf("read baseline temperature: %w", err)
	}

	if err := driver.ApplyControlOutput(ctx, p.StepPercent); err != nil {
		return TuneResult{}, fmt.Errorf("apply step: %w", err)
	}
	defer driver.ApplyControlOutput(context.Background(), 0)

	type sample struct {
		t     time.Duration
		tempC float64
	}
	var samples []sample
	start := time.Now()
	ticker := time.NewTicker(p.SampleInterval)
	defer ticker.Stop()

sampling:
	for {
		select {
		case <-ctx.Done():
			return TuneResult{}, ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			temp, err := driver.ReadTemperatureCelsius(ctx)
			if err != nil {
				return TuneResult{}, fmt.Errorf("read response sample: %w", err)
			}
			samples = append(samples, sample{t: elapsed, tempC: temp})
			if elapsed >= p.Duration {
				break sampling
			}
		}
	}

	if len(samples) < 3 {
		return TuneResult{}, fmt.Errorf("insufficient samples to fit a process model")
	}

	final := samples[len(samples)-1].tempC
	deltaTotal := final - baseline
	if deltaTotal == 0 {
		return TuneResult{}, fmt.Errorf("no measurable response to step input")
	}

	// Reaction-curve method: dead time is the elapsed time until the
	// response crosses 5% of its total change; time constant is the
	// elapsed time from dead time until it crosses 63.2% (1 - 1/e).
	var deadTime, timeConstant float64
	threshold5 := baseline + 0.05*deltaTotal
	threshold63 := baseline + 0.632*deltaTotal
	foundDead, found63 := false, false
	for _, s := range samples {
		crossed5 := (deltaTotal > 0 && s.tempC >= threshold5) || (deltaTotal < 0 && s.tempC <= threshold5)
		if !foundDead && crossed5 {
			deadTime = s.t.Seconds()
			foundDead = true
		}
		crossed63 := (deltaTotal > 0 && s.tempC >= threshold63) || (deltaTotal < 0 && s.tempC <= threshold63)
		if !found63 && crossed63 {
			timeConstant = s.t.Seconds() - deadTime
			found63 = true
			break
		}
	}
	if timeConstant <= 0 {
		timeConstant = p.Duration.Seconds() / 4
	}
	if deadTime <= 0 {
		deadTime = p.SampleInterval.Seconds()
	}

	processGain := deltaTotal / p.StepPercent

	result := TuneResult{
		Method:                 p.Method,
		ProcessGainKPerPercent: processGain,
		DeadTimeSeconds:        deadTime,
		TimeConstantSeconds:    timeConstant,
	}

	switch p.Method {
	case MethodCohenCoon:
		result.Kp, result.Ki, result.Kd = cohenCoonGains(processGain, deadTime, timeConstant)
	default:
		result.Kp, result.Ki, result.Kd = zieglerNicholsGains(processGain, deadTime, timeConstant)
	}
	return result, nil
}

// zieglerNicholsGains applies the open-loop (reaction-curve) Ziegler-
// Nichols PID rule: Kp = 1.2*T/(K*L), Ti = 2L, Td = 0.5L.
func zieglerNicholsGains(k, deadTime, timeConstant float64) (kp, ki, kd float64) {
	if deadTime <= 0 {
		deadTime = 1e-3
	}
	kp = 1.2 * timeConstant / (k * deadTime)
	ti := 2 * deadTime
	td := 0.5 * deadTime
	ki = kp / ti
	kd = kp * td
	return
}

// cohenCoonGains applies the Cohen-Coon PID rule, which compensates
// better than Ziegler-Nichols for processes with a large dead-time to
// time-constant ratio.
func cohenCoonGains(k, deadTime, timeConstant float64) (kp, ki, kd float64) {
	if deadTime <= 0 {
		deadTime = 1e-3
	}
	tau := timeConstant
	ratio := deadTime / tau

	kp = (1 / (k * ratio)) * (1.35 + 0.27*ratio)
	ti := deadTime * (2.5 + ratio) / (1 + 0.39*ratio)
	td := deadTime * 0.37 / (1 + 0.81*ratio)
	ki = kp / ti
	kd = kp * td
	return
}
