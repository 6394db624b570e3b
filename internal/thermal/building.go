package thermal

// BuildingParameters describes the envelope whose heat demand is drawn from the tank.
// Temperatures are absolute (K); areas in m², U-values in W/(m²·K).
type BuildingParameters struct {
	WallArea            float64
	WallUValue          float64
	RoofArea            float64
	RoofUValue          float64
	SetpointTemperature float64
}

func (params *BuildingParameters) Validate() error {
	if !finite(params.WallArea, params.WallUValue, params.RoofArea, params.RoofUValue, params.SetpointTemperature) {
		return ErrNonFiniteParameter
	}
	return nil
}

// Conductance is the envelope heat-transfer coefficient in W/K.
func (params *BuildingParameters) Conductance() float64 {
	return params.WallArea*params.WallUValue + params.RoofArea*params.RoofUValue
}

// HeatLoad returns the building heat demand in W for an ambient temperature in °C.
//
// Q_load = -(Aw·Uw + Ar·Ur)·(T_amb - T_sp). The result is positive when it is colder outside
// than the setpoint; the tank equation subtracts it, so a cold day drains the tank.
func HeatLoad(ambientC float64, params BuildingParameters) float64 {
	diff := CelsiusToKelvin(ambientC) - params.SetpointTemperature
	return -(params.WallArea*params.WallUValue*diff + params.RoofArea*params.RoofUValue*diff)
}
