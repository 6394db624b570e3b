package thermal

import (
	"fmt"
	"sort"
	"strings"
)

// Preset is a named building and tank configuration.
type Preset struct {
	Name                   string
	Description            string
	Building               BuildingParameters
	Tank                   TankParameters
	WaterMass              float64 // kg
	InitialTankTemperature float64 // K
}

func presetTank(waterKg, area float64) TankParameters {
	return TankParameters{
		Capacity:             CapacityFromWaterMass(waterKg),
		LossCoefficient:      5,
		SurfaceArea:          area,
		CondenserCoefficient: 300,
		CondenserArea:        1.11,
		CondenserTemperature: 343.15,
		OnThreshold:          313.15,
		OffThreshold:         333.15,
	}
}

var presets = map[string]Preset{
	"A": {
		Name:                   "A",
		Description:            "well-insulated, smaller home",
		Building:               BuildingParameters{WallArea: 85, WallUValue: 0.4, RoofArea: 80, RoofUValue: 0.15, SetpointTemperature: 288.15},
		Tank:                   presetTank(160, 0.8),
		WaterMass:              160,
		InitialTankTemperature: 318.15,
	},
	"B": {
		Name:                   "B",
		Description:            "moderately insulated, medium-sized home",
		Building:               BuildingParameters{WallArea: 135, WallUValue: 0.6, RoofArea: 120, RoofUValue: 0.25, SetpointTemperature: 298.15},
		Tank:                   presetTank(200, 1.0),
		WaterMass:              200,
		InitialTankTemperature: 318.15,
	},
	"C": {
		Name:                   "C",
		Description:            "poorly insulated, larger house",
		Building:               BuildingParameters{WallArea: 180, WallUValue: 0.8, RoofArea: 160, RoofUValue: 0.3, SetpointTemperature: 303.15},
		Tank:                   presetTank(240, 1.2),
		WaterMass:              240,
		InitialTankTemperature: 318.15,
	},
	"D": {
		Name:                   "D",
		Description:            "default building",
		Building:               BuildingParameters{WallArea: 132, WallUValue: 0.51, RoofArea: 120, RoofUValue: 0.18, SetpointTemperature: 293.15},
		Tank:                   presetTank(200, 1.0),
		WaterMass:              200,
		InitialTankTemperature: 318.15,
	},
}

// DefaultPreset is used when no preset is configured.
const DefaultPreset = "D"

// LookupPreset finds a preset by name, case-insensitively.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
