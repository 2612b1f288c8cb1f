package thermal

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// USB-HID report layout for the bridge's register tunnel, in 8-byte
// reports: a sensor read request is report ID, read command (0x02),
// sensor register, and its reply carries the raw reading little-endian in
// bytes 1-2; an actuator report is report ID, PWM channel, then
// little-endian duty counts and direction bits as two 16-bit words.
// This mirrors the same PCA9685/CAT9555 register set the native driver
// addresses directly, so the regulator and auto-tuner can't tell the
// two apart (spec.md 4.12: "presents the identical register interface
// tunnelled over USB-HID").
const (
	hidReportID     = 0x01
	hidRegReadReport = 0x02
	hidReportSize    = 8
)

// USBHIDTransport is the opened HID device node (e.g. os.OpenFile on
// /dev/hidrawN, or any report-based character device). Constructing one
// is the caller's responsibility since opening a specific OS device
// node isn't itself a domain concern of this package; no HID/USB
// library appears anywhere in the reference corpus this driver is
// grounded on, so the transport is kept to this narrow io interface
// rather than inventing a third-party binding.
type USBHIDTransport interface {
	io.ReadWriteCloser
}

// USBHIDConfig carries the same register addresses as NativeConfig,
// since the bridge exposes an identical PCA9685+CAT9555 register set
// over HID instead of a directly wired I2C bus.
type USBHIDConfig struct {
	Transport         USBHIDTransport
	PWMChannel        int
	DirectionBit      uint16
	Mapping           ActuatorMapping
	SensorRegister    byte
	SensorGainPerVolt float64
	SensorOffsetC     float64
}

// USBHIDDriver tunnels the same register protocol as NativeDriver
// through a USB-HID device (e.g. an MCP2221 or similar USB<->I2C/GPIO
// bridge chip), so the same actuator hardware can be attached to a host
// without a Raspberry Pi's native I2C bus.
type USBHIDDriver struct {
	cfg USBHIDConfig

	mu        sync.Mutex
	outputPct float64
	status    string
}

func NewUSBHIDDriver(cfg USBHIDConfig) *USBHIDDriver {
	return &USBHIDDriver{cfg: cfg, status: "uninitialized"}
}

func (d *USBHIDDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.Transport == nil {
		d.status = "fault: no transport configured"
		return fmt.Errorf("usb-hid thermal driver: no transport configured")
	}
	d.status = "ready"
	return nil
}

func (d *USBHIDDriver) ReadTemperatureCelsius(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.Transport == nil {
		return 0, fmt.Errorf("usb-hid thermal driver not initialized")
	}

	req := [hidReportSize]byte{hidReportID, hidRegReadReport, d.cfg.SensorRegister}
	if _, err := d.cfg.Transport.Write(req[:]); err != nil {
		return 0, fmt.Errorf("write sensor read request: %w", err)
	}

	resp := make([]byte, hidReportSize)
	if _, err := io.ReadFull(d.cfg.Transport, resp); err != nil {
		return 0, fmt.Errorf("read sensor response: %w", err)
	}
	raw := binary.LittleEndian.Uint16(resp[1:3])
	volts := float64(raw) / 65535 * 3.3

	gain := d.cfg.SensorGainPerVolt
	if gain == 0 {
		gain = 1
	}
	return volts*gain + d.cfg.SensorOffsetC, nil
}

func (d *USBHIDDriver) ApplyControlOutput(ctx context.Context, percent float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.Transport == nil {
		return fmt.Errorf("usb-hid thermal driver not initialized")
	}

	percent = clamp(percent, -100, 100)
	heat, cool := SplitDuty(percent, d.cfg.Mapping)
	duty := heat
	dirBit := uint16(0)
	if heat > 0 {
		dirBit = d.cfg.DirectionBit
	} else {
		duty = cool
	}

	dutyCounts := uint16(duty / 100 * pca9685PWMFullScale)
	report := [hidReportSize]byte{hidReportID, byte(d.cfg.PWMChannel)}
	binary.LittleEndian.PutUint16(report[2:4], dutyCounts)
	binary.LittleEndian.PutUint16(report[4:6], dirBit)

	if _, err := d.cfg.Transport.Write(report[:]); err != nil {
		return fmt.Errorf("write actuator report: %w", err)
	}
	d.outputPct = percent
	return nil
}

func (d *USBHIDDriver) CurrentControlOutput() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputPct
}

func (d *USBHIDDriver) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
