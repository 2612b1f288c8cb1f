package thermal

import (
	"context"
	"fmt"
	"sync"

	"github.com/reef-pi/hal"
	"github.com/reef-pi/rpi/i2c"
	"github.com/warthog618/go-gpiocdev"
)

// PCA9685 PWM controller registers (16-channel, used here to drive the
// H-bridge PWM magnitude input and the Peltier module in the
// dual-channel mapping).
const (
	pca9685RegMode1    = 0x00
	pca9685RegPrescale = 0xFE
	pca9685RegLed0OnL  = 0x06

	pca9685PWMFullScale = 4096
)

// CAT9555 16-bit I2C GPIO expander registers, used for direction/enable
// lines that don't need PWM (H-bridge direction bits).
const (
	cat9555RegOutputPort0 = 0x02
	cat9555RegConfigPort0 = 0x06
)

// NativeConfig addresses the two I2C chips and the gpiocdev lines used
// for a native H-bridge or dual-channel Peltier driver (spec.md 4.12:
// "raw I2C/GPIO ... PCA9685-style PWM, CAT9555-style GPIO expander").
type NativeConfig struct {
	Bus              *BusPool
	PWMAddress       byte
	PWMChannel       int // PCA9685 channel driving the actuator's PWM input
	ExpanderAddress  byte
	DirectionPinMask uint16 // CAT9555 "heat" direction bit; not used by NativeDriver
	Mapping          ActuatorMapping

	// Sensor read path: an AnalogInputPin (e.g. an ADS1115 channel
	// wired through the reef-pi/hal package) already produces a
	// calibrated measurement; this driver converts that measurement to
	// Celsius via SensorGainPerVolt/SensorOffsetC.
	Sensor           hal.AnalogInputPin
	SensorGainPerVolt float64
	SensorOffsetC     float64

	// GPIO chip/line for discrete H-bridge direction control, used when
	// Mapping is h_bridge. Left empty for dual_channel mappings that
	// drive both directions from the PCA9685 directly.
	GPIOChip    string
	DirectionLine int
}

// NativeDriver is the raw I2C/GPIO ThermalRegulationDriver (spec.md
// 4.12), talking to a PCA9685 PWM controller for actuator duty and an
// optional gpiocdev line for H-bridge direction, sharing the physical bus
// through a BusPool. It never writes the CAT9555 expander:
// ExpanderAddress and DirectionPinMask are not used.
type NativeDriver struct {
	cfg NativeConfig

	mu        sync.Mutex
	prescaleSet bool
	outputPct float64
	line      *gpiocdev.Line
	status    string
}

func NewNativeDriver(cfg NativeConfig) *NativeDriver {
	return &NativeDriver{cfg: cfg, status: "uninitialized"}
}

func (d *NativeDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.cfg.Bus.WithBus(func(bus i2c.Bus) error {
		if err := bus.WriteToReg(d.cfg.PWMAddress, pca9685RegMode1, []byte{0x00}); err != nil {
			return fmt.Errorf("pca9685 mode1 reset: %w", err)
		}
		// 50Hz-ish prescale for a typical H-bridge driver input, fixed
		// here since the regulator's sampling rate is independent of the
		// actuator's PWM carrier frequency.
		if err := bus.WriteToReg(d.cfg.PWMAddress, pca9685RegPrescale, []byte{0x79}); err != nil {
			return fmt.Errorf("pca9685 prescale: %w", err)
		}
		return nil
	}); err != nil {
		d.status = "fault: " + err.Error()
		return err
	}
	d.prescaleSet = true

	if d.cfg.Mapping == MappingHBridge && d.cfg.GPIOChip != "" {
		chip, err := gpiocdev.RequestLine(d.cfg.GPIOChip, d.cfg.DirectionLine, gpiocdev.AsOutput(0))
		if err != nil {
			d.status = "fault: " + err.Error()
			return fmt.Errorf("request direction line: %w", err)
		}
		d.line = chip
	}

	d.status = "ready"
	return nil
}

func (d *NativeDriver) ReadTemperatureCelsius(ctx context.Context) (float64, error) {
	if d.cfg.Sensor == nil {
		return 0, fmt.Errorf("native thermal driver: no sensor configured")
	}
	volts, err := d.cfg.Sensor.Value()
	if err != nil {
		return 0, fmt.Errorf("read sensor: %w", err)
	}
	gain := d.cfg.SensorGainPerVolt
	if gain == 0 {
		gain = 1
	}
	return volts*gain + d.cfg.SensorOffsetC, nil
}

func (d *NativeDriver) ApplyControlOutput(ctx context.Context, percent float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	percent = clamp(percent, -100, 100)
	heat, cool := SplitDuty(percent, d.cfg.Mapping)
	duty := heat
	if duty == 0 {
		duty = cool
	}

	if d.line != nil {
		dir := 0
		if heat > 0 {
			dir = 1
		}
		if err := d.line.SetValue(dir); err != nil {
			return fmt.Errorf("set direction line: %w", err)
		}
	}

	onCount := 0
	offCount := int(duty / 100 * pca9685PWMFullScale)
	if offCount >= pca9685PWMFullScale {
		offCount = pca9685PWMFullScale - 1
	}

	regBase := byte(pca9685RegLed0OnL + 4*d.cfg.PWMChannel)
	buf := []byte{
		byte(onCount & 0xff), byte(onCount >> 8),
		byte(offCount & 0xff), byte(offCount >> 8),
	}
	if err := d.cfg.Bus.WithBus(func(bus i2c.Bus) error {
		return bus.WriteToReg(d.cfg.PWMAddress, regBase, buf)
	}); err != nil {
		return fmt.Errorf("write pca9685 duty: %w", err)
	}

	d.outputPct = percent
	return nil
}

func (d *NativeDriver) CurrentControlOutput() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputPct
}

func (d *NativeDriver) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
