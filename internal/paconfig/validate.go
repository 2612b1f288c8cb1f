package paconfig

import "fmt"

// Validate checks the full document for invalid values, per spec.md
// 4.14's startup-time config validation requirement.
func (c *Config) Validate() error {
	if err := c.Acquisition.Validate(); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}
	if err := c.Processing.Graph.Validate(); err != nil {
		return fmt.Errorf("processing.graph: %w", err)
	}
	for id, t := range c.Thermal {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("thermal_regulation[%s]: %w", id, err)
		}
	}
	if err := c.Modbus.Validate(); err != nil {
		return fmt.Errorf("modbus: %w", err)
	}
	if err := c.Action.Validate(); err != nil {
		return fmt.Errorf("action: %w", err)
	}
	return nil
}

func (a AcquisitionConfig) Validate() error {
	switch a.Source {
	case "live":
	case "file_replay":
		if a.FilePath == "" {
			return fmt.Errorf("file_path is required when source is file_replay")
		}
	default:
		return fmt.Errorf("source must be live or file_replay (got %q)", a.Source)
	}
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive")
	}
	if a.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive")
	}
	if a.LatencyBudgetMs <= 0 {
		return fmt.Errorf("latency_budget_ms must be positive")
	}
	return nil
}

func (g GraphConfig) Validate() error {
	if g.InputNode == "" {
		return fmt.Errorf("input_node is required")
	}
	if g.OutputNode == "" {
		return fmt.Errorf("output_node is required")
	}
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("every node requires an id")
		}
		if n.Type == "" {
			return fmt.Errorf("node %q requires a type", n.ID)
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range g.Edges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("edges require both from and to")
		}
	}
	return nil
}

func (t ThermalConfig) Validate() error {
	switch t.DriverType {
	case "simulation", "native", "usb_hid":
	default:
		return fmt.Errorf("driver_type must be simulation, native, or usb_hid (got %q)", t.DriverType)
	}
	if t.SamplingFrequencyHz <= 0 {
		return fmt.Errorf("sampling_frequency_hz must be positive")
	}
	if t.SafetyLimits.MaxC != 0 && t.SafetyLimits.MaxC <= t.SafetyLimits.MinC {
		return fmt.Errorf("safety_limits.max_c must be greater than min_c")
	}
	switch t.ActuatorMapping {
	case "", "h_bridge", "dual_channel":
	default:
		return fmt.Errorf("actuator_mapping must be h_bridge or dual_channel (got %q)", t.ActuatorMapping)
	}
	return nil
}

func (m ModbusConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address is required when modbus is enabled")
	}
	return nil
}

func (a ActionConfig) Validate() error {
	switch a.Driver {
	case "redis", "kafka", "http", "interpreter":
	default:
		return fmt.Errorf("driver must be redis, kafka, http, or interpreter (got %q)", a.Driver)
	}
	switch a.TriggerMode {
	case "", "every_n", "threshold", "change_delta":
	default:
		return fmt.Errorf("trigger_mode must be every_n, threshold, or change_delta (got %q)", a.TriggerMode)
	}
	if a.BufferSize < 0 || a.QueueSize < 0 {
		return fmt.Errorf("buffer_size and queue_size must not be negative")
	}
	return nil
}
