// Package paconfig loads, validates, and atomically persists the
// daemon's config.yaml (spec.md 4.14/6: acquisition, processing graph,
// thermal regulation, modbus, action dispatch sections).
package paconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level document, unmarshaled directly from
// config.yaml.
type Config struct {
	Acquisition AcquisitionConfig       `yaml:"acquisition"`
	Processing  ProcessingConfig        `yaml:"processing"`
	Thermal     map[string]ThermalConfig `yaml:"thermal_regulation"`
	Modbus      ModbusConfig            `yaml:"modbus"`
	Action      ActionConfig            `yaml:"action"`
}

// AcquisitionConfig describes the audio source (spec.md 4.1-4.3).
type AcquisitionConfig struct {
	Source         string `yaml:"source"` // "live" or "file_replay"
	Device         string `yaml:"device,omitempty"`
	FilePath       string `yaml:"file_path,omitempty"`
	SampleRate     int    `yaml:"sample_rate"`
	FrameSize      int    `yaml:"frame_size"`
	LatencyBudgetMs int   `yaml:"latency_budget_ms"`
	Loop           bool   `yaml:"loop,omitempty"`
}

// ProcessingConfig is the hot-reloadable processing graph definition
// (spec.md 4.5-4.7): a flat node list plus an edge list, matching
// graph.Config's shape so paconfig can hand it straight to
// graph.ApplyHotReload after translation.
type ProcessingConfig struct {
	Graph GraphConfig `yaml:"graph"`
}

type GraphConfig struct {
	InputNode  string           `yaml:"input_node"`
	OutputNode string           `yaml:"output_node"`
	Nodes      []NodeConfig     `yaml:"nodes"`
	Edges      []EdgeConfig     `yaml:"edges"`
}

type NodeConfig struct {
	ID         string         `yaml:"id"`
	Type       string         `yaml:"type"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

type EdgeConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ThermalConfig is one regulator's config.yaml entry (spec.md 4.11/4.12).
type ThermalConfig struct {
	DriverType          string             `yaml:"driver_type"`
	Kp                  float64            `yaml:"kp"`
	Ki                  float64            `yaml:"ki"`
	Kd                  float64            `yaml:"kd"`
	SetpointC           float64            `yaml:"setpoint_c"`
	SamplingFrequencyHz float64            `yaml:"sampling_frequency_hz"`
	SafetyLimits        ThermalSafetyLimits `yaml:"safety_limits"`
	ActuatorMapping     string             `yaml:"actuator_mapping"`
	FaultClearDwellS    float64            `yaml:"fault_clear_dwell_s"`
}

type ThermalSafetyLimits struct {
	MinC           float64 `yaml:"min_c"`
	MaxC           float64 `yaml:"max_c"`
	MaxDutyPercent float64 `yaml:"max_duty_percent"`
}

// ModbusConfig configures the Modbus TCP server (spec.md 4.13).
type ModbusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// ActionConfig configures the measurement action-dispatch node (spec.md
// 4.9).
type ActionConfig struct {
	Driver      string         `yaml:"driver"` // "redis", "kafka", "http", "interpreter"
	BufferSize  int            `yaml:"buffer_size"`
	QueueSize   int            `yaml:"queue_size"`
	TriggerMode string         `yaml:"trigger_mode"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
}

// LoadConfig reads and parses a config.yaml, returning a validated
// Config.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 - path is administrator-controlled, not web input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration back to path, atomically: write to a
// temp file in the same directory, sync, rename over the target so a
// crash mid-write never leaves a partially-written config.yaml.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config.*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp config file: %w", err)
	}
	if err := tmp.Chmod(0640); err != nil {
		return fmt.Errorf("set config file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config file: %w", err)
	}

	success = true
	return nil
}

// DefaultConfig returns a minimal single-channel configuration suitable
// for demo/dev mode.
func DefaultConfig() *Config {
	return &Config{
		Acquisition: AcquisitionConfig{
			Source:          "live",
			SampleRate:      48000,
			FrameSize:       1024,
			LatencyBudgetMs: 200,
		},
		Processing: ProcessingConfig{
			Graph: GraphConfig{
				InputNode:  "source",
				OutputNode: "sink",
			},
		},
		Thermal: map[string]ThermalConfig{},
		Modbus: ModbusConfig{
			Enabled: false,
			Address: "0.0.0.0:502",
		},
		Action: ActionConfig{
			Driver:      "interpreter",
			BufferSize:  64,
			QueueSize:   32,
			TriggerMode: "every_n",
		},
	}
}
