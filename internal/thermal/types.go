package thermal

import (
	"fmt"
	"math"
)

const (
	// CelsiusOffset converts between Celsius and Kelvin.
	CelsiusOffset = 273.15

	// COPReferenceTemperature is the condenser reference (°C) of the COP curve.
	COPReferenceTemperature = 60.0

	// WaterHeatCapacity is the specific heat of water in J/(kg·K).
	WaterHeatCapacity = 4186.0

	DefaultHorizon         = 86400.0
	DefaultReportingPoints = 1000
	DefaultMaxStep         = 100.0
	DefaultRelTol          = 1e-3
	DefaultAbsTol          = 1e-6

	minStepBudget   = 10000
	stepsPerMaxStep = 50

	joulesPerKWh = 3.6e6
)

func CelsiusToKelvin(c float64) float64 { return c + CelsiusOffset }
func KelvinToCelsius(k float64) float64 { return k - CelsiusOffset }

// HeatSource is an integer enum of the heat pump state.
type HeatSource int

const (
	HeatSourceUnknown HeatSource = iota
	HeatSourceInactive
	HeatSourceActive
)

func (h HeatSource) Valid() bool {
	return h == HeatSourceInactive || h == HeatSourceActive
}

func (h HeatSource) String() string {
	switch h {
	case HeatSourceInactive:
		return "inactive"
	case HeatSourceActive:
		return "active"
	default:
		return "unknown"
	}
}

func ParseHeatSource(s string) (HeatSource, error) {
	switch s {
	case "inactive", "off":
		return HeatSourceInactive, nil
	case "active", "on":
		return HeatSourceActive, nil
	default:
		return HeatSourceUnknown, fmt.Errorf("%w: %q", ErrInvalidHeatSource, s)
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
