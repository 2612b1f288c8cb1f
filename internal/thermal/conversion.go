package thermal

// TemperatureConversion evaluates a configured formula converting a raw
// driver reading (already in Celsius from the Driver contract, or a raw
// ADC count for drivers that expose one) to Kelvin, per spec.md 4.11's
// `temperature_conversion.formula`. Drivers in this package already
// return Celsius directly (spec.md 4.12's read_temperature contract), so
// Convert here is the Celsius-to-Kelvin step plus an optional linear
// correction (gain/offset) fitted during calibration.
type TemperatureConversion struct {
	GainPerUnit float64 // defaults to 1 when zero
	OffsetK     float64
}

func (c TemperatureConversion) ToKelvin(celsius float64) float64 {
	gain := c.GainPerUnit
	if gain == 0 {
		gain = 1
	}
	return (celsius+273.15)*gain + c.OffsetK
}

// SafetyLimits are checked every regulator loop iteration (spec.md
// 4.11). A violation forces the output to zero and enters Fault.
type SafetyLimits struct {
	MinKelvin float64
	MaxKelvin float64
	MaxDutyPercent float64
}

func (s SafetyLimits) Violated(tempK, dutyPercent float64) bool {
	if s.MaxKelvin > 0 && (tempK < s.MinKelvin || tempK > s.MaxKelvin) {
		return true
	}
	if s.MaxDutyPercent > 0 {
		abs := dutyPercent
		if abs < 0 {
			abs = -abs
		}
		if abs > s.MaxDutyPercent {
			return true
		}
	}
	return false
}
