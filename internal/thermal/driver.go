package thermal

import "context"

// Driver is the ThermalRegulationDriver contract (spec.md 4.12). All
// three required implementations (simulation, native I2C/GPIO, USB-HID
// bridge) MUST be behaviorally interchangeable so a generic PID loop
// and auto-tuner work against any of them without knowing which.
type Driver interface {
	Initialize(ctx context.Context) error
	ReadTemperatureCelsius(ctx context.Context) (float64, error)
	ApplyControlOutput(ctx context.Context, percent float64) error
	CurrentControlOutput() float64
	Status() string
}

// ActuatorMapping describes how a [-100, 100] percent output splits into
// heating/cooling duty, per spec.md 4.11: "H-bridge direction + PWM
// magnitude, or dual-channel direct."
type ActuatorMapping string

const (
	MappingHBridge      ActuatorMapping = "h_bridge"
	MappingDualChannel  ActuatorMapping = "dual_channel"
)

// SplitDuty converts a signed percent output into heating/cooling duty
// percentages in [0, 100], per the configured actuator mapping. Positive
// percent heats, negative cools; both outputs are direct PWM duty
// percentages in [0,100] for the H-bridge case and for dual-channel.
func SplitDuty(percent float64, mapping ActuatorMapping) (heatDuty, coolDuty float64) {
	_ = mapping // both mappings use the same sign convention; mapping affects
	// only which physical pins the driver toggles, not this arithmetic.
	if percent >= 0 {
		return percent, 0
	}
	return 0, -percent
}
