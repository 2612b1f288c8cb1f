package thermal

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimulationConfig parameterizes a physically-plausible thermal-inertia
// model: mass and specific heat set the plant's thermal capacitance,
// ambientCouplingWPerK its passive loss rate, and PeltierMaxWatts its
// actuator gain (spec.md 4.12). The model has no resistive heater.
type SimulationConfig struct {
	MassKg               float64
	SpecificHeatJPerKgK  float64
	AmbientCouplingWPerK float64
	AmbientTempC         float64
	PeltierMaxWatts      float64 // heating+cooling actuator power at 100% duty
	ResistiveMaxWatts    float64 // not used by the thermal model
}

func (c SimulationConfig) withDefaults() SimulationConfig {
	if c.MassKg <= 0 {
		c.MassKg = 0.05
	}
	if c.SpecificHeatJPerKgK <= 0 {
		c.SpecificHeatJPerKgK = 900
	}
	if c.AmbientCouplingWPerK <= 0 {
		c.AmbientCouplingWPerK = 0.3
	}
	if c.PeltierMaxWatts <= 0 {
		c.PeltierMaxWatts = 15
	}
	return c
}

// SimulationDriver models a Peltier-driven thermal mass with ambient
// coupling, for demo/dev mode and for exercising the regulator loop and
// auto-tuner without hardware.
type SimulationDriver struct {
	cfg SimulationConfig

	mu         sync.Mutex
	tempC      float64
	outputPct  float64
	lastStepAt time.Time
}

func NewSimulationDriver(cfg SimulationConfig) *SimulationDriver {
	cfg = cfg.withDefaults()
	return &SimulationDriver{cfg: cfg, tempC: cfg.AmbientTempC}
}

func (d *SimulationDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	d.lastStepAt = time.Now()
	d.mu.Unlock()
	return nil
}

func (d *SimulationDriver) ReadTemperatureCelsius(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.step()
	return d.tempC, nil
}

func (d *SimulationDriver) ApplyControlOutput(ctx context.Context, percent float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputPct = clamp(percent, -100, 100)
	return nil
}

func (d *SimulationDriver) CurrentControlOutput() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputPct
}

func (d *SimulationDriver) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return "simulated"
}

// step advances the thermal model by the elapsed wall time since the
// previous call: dT/dt = (actuatorPower - ambientLoss) / (mass*specificHeat).
func (d *SimulationDriver) step() {
	now := time.Now()
	dt := now.Sub(d.lastStepAt).Seconds()
	if dt <= 0 {
		dt = 1e-3
	}
	d.lastStepAt = now

	actuatorWatts := d.cfg.PeltierMaxWatts * (d.outputPct / 100)
	ambientLossWatts := d.cfg.AmbientCouplingWPerK * (d.tempC - d.cfg.AmbientTempC)

	thermalCapacity := d.cfg.MassKg * d.cfg.SpecificHeatJPerKgK
	dTemp := (actuatorWatts - ambientLossWatts) / thermalCapacity * dt

	d.tempC += dTemp
	if math.IsNaN(d.tempC) || math.IsInf(d.tempC, 0) {
		d.tempC = d.cfg.AmbientTempC
	}
}
