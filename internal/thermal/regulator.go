package thermal

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// RegulatorState is the per-regulator state machine from spec.md 4.11:
// Initializing -> Running <-> Fault -> Stopping -> Stopped.
type RegulatorState int

const (
	Initializing RegulatorState = iota
	Running
	Fault
	Stopping
	Stopped
)

func (s RegulatorState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Fault:
		return "fault"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config is a regulator's hot-reloadable parameters plus the parameters
// that force a restart (spec.md 4.11).
type Config struct {
	Kp, Ki, Kd        float64
	Setpoint          float64
	SafetyLimits      SafetyLimits
	SamplingFrequencyHz float64
	Conversion        TemperatureConversion
	Mapping           ActuatorMapping
	FaultClearDwell   time.Duration // how long the violating condition must be absent before Fault auto-clears

	// The struct carries no driver identity (driver_type, pins,
	// addresses); a change to those is not applied by UpdateConfig, and
	// nothing in the daemon restarts the regulator's task for it.
}

// Sample is one reading published for observability (GET
// /api/thermal/current).
type Sample struct {
	RegulatorID  string
	TemperatureK float64
	OutputPercent float64
	State        RegulatorState
	ObservedAt   time.Time
}

// Regulator runs one PID thermal-control loop task per spec.md 4.11.
type Regulator struct {
	id     string
	driver Driver
	logger *log.Logger

	mu     sync.RWMutex
	cfg    Config
	pid    PID
	state  RegulatorState
	faultSince time.Time
	faultClearedSince time.Time
	lastSample Sample
}

func NewRegulator(id string, driver Driver, cfg Config, logger *log.Logger) *Regulator {
	return &Regulator{
		id:     id,
		driver: driver,
		logger: logger,
		cfg:    cfg,
		pid:    PID{Kp: cfg.Kp, Ki: cfg.Ki, Kd: cfg.Kd, OutputMin: -100, OutputMax: 100},
		state:  Initializing,
	}
}

func (r *Regulator) ID() string { return r.id }

// Driver exposes the underlying hardware/simulation driver, for callers
// that need to run AutoTune against a live regulator's driver.
func (r *Regulator) Driver() Driver { return r.driver }

func (r *Regulator) State() RegulatorState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Regulator) setState(s RegulatorState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Regulator) LastSample() Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSample
}

// UpdateConfig applies the hot-reloadable subset of Config in place
// (spec.md 4.11: kp/ki/kd/setpoint/safety_limits/sampling_frequency_hz/
// temperature_conversion.formula). driver_type and pin/address changes
// are not applied here, and the orchestrator does not restart the task
// for them.
func (r *Regulator) UpdateConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.pid.Kp, r.pid.Ki, r.pid.Kd = cfg.Kp, cfg.Ki, cfg.Kd
}

// Run executes the sampling loop until ctx is cancelled, per spec.md
// 4.11: read sensor -> convert -> PID -> saturate -> split duty -> safety
// check -> apply -> sleep(1/sampling_frequency).
func (r *Regulator) Run(ctx context.Context) {
	if err := r.driver.Initialize(ctx); err != nil {
		r.logger.Error("thermal driver init failed", "regulator", r.id, "err", err)
		r.setState(Fault)
		return
	}
	r.setState(Running)

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.setState(Stopping)
			r.driver.ApplyControlOutput(context.Background(), 0)
			r.setState(Stopped)
			return
		default:
		}

		r.mu.RLock()
		cfg := r.cfg
		r.mu.RUnlock()

		hz := cfg.SamplingFrequencyHz
		if hz <= 0 {
			hz = 1
		}
		period := time.Duration(float64(time.Second) / hz)

		now := time.Now()
		dt := now.Sub(lastTick).Seconds()
		lastTick = now

		celsius, err := r.driver.ReadTemperatureCelsius(ctx)
		if err != nil {
			r.logger.Error("thermal sensor read failed", "regulator", r.id, "err", err)
			r.enterFault(cfg)
			r.sleep(ctx, period)
			continue
		}
		tempK := cfg.Conversion.ToKelvin(celsius)

		output := r.pidStep(cfg, tempK, dt)

		if cfg.SafetyLimits.Violated(tempK, output) {
			r.logger.Warn("thermal safety limit violated", "regulator", r.id, "temp_k", tempK, "duty", output)
			r.enterFault(cfg)
			r.driver.ApplyControlOutput(ctx, 0)
			r.recordSample(tempK, 0)
			r.sleep(ctx, period)
			continue
		}

		if r.State() == Fault {
			r.tryClearFault(cfg)
		}

		if err := r.driver.ApplyControlOutput(ctx, output); err != nil {
			r.logger.Error("thermal driver apply failed", "regulator", r.id, "err", err)
		}
		r.recordSample(tempK, output)

		r.sleep(ctx, period)
	}
}

func (r *Regulator) pidStep(cfg Config, tempK, dt float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid.Step(cfg.Setpoint, tempK, dt)
}

func (r *Regulator) enterFault(cfg Config) {
	if r.State() != Fault {
		r.mu.Lock()
		r.faultSince = time.Now()
		r.mu.Unlock()
	}
	r.mu.Lock()
	r.faultClearedSince = time.Time{}
	r.mu.Unlock()
	r.setState(Fault)
}

func (r *Regulator) tryClearFault(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faultClearedSince.IsZero() {
		r.faultClearedSince = time.Now()
		return
	}
	if time.Since(r.faultClearedSince) >= cfg.FaultClearDwell {
		r.state = Running
		r.pid.Reset()
	}
}

func (r *Regulator) recordSample(tempK, output float64) {
	r.mu.Lock()
	r.lastSample = Sample{RegulatorID: r.id, TemperatureK: tempK, OutputPercent: output, State: r.state, ObservedAt: time.Now()}
	r.mu.Unlock()
}

func (r *Regulator) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
