package thermal

// TankParameters holds the storage tank and condenser configuration. Temperatures are absolute (K).
type TankParameters struct {
	Capacity             float64 // J/K
	LossCoefficient      float64 // tank-to-ambient, W/(m²·K)
	SurfaceArea          float64 // m²
	CondenserCoefficient float64 // W/(m²·K)
	CondenserArea        float64 // m²
	CondenserTemperature float64 // K, fixed
	OnThreshold          float64 // K
	OffThreshold         float64 // K
}

func (params *TankParameters) Validate() error {
	if !finite(params.Capacity, params.LossCoefficient, params.SurfaceArea, params.CondenserCoefficient,
		params.CondenserArea, params.CondenserTemperature, params.OnThreshold, params.OffThreshold) {
		return ErrNonFiniteParameter
	}
	if params.Capacity <= 0 {
		return ErrNonPositiveCapacity
	}
	h := params.Hysteresis()
	return h.Validate()
}

func (params *TankParameters) Hysteresis() HysteresisParams {
	return HysteresisParams{On: params.OnThreshold, Off: params.OffThreshold}
}

// CapacityFromWaterMass returns the thermal capacity of a tank holding massKg of water.
func CapacityFromWaterMass(massKg float64) float64 {
	return massKg * WaterHeatCapacity
}

// CondenserOutput is Q_hp in W for an active heat source.
func (params *TankParameters) CondenserOutput(tankK float64) float64 {
	return params.CondenserArea * params.CondenserCoefficient * (params.CondenserTemperature - tankK)
}

// StandingLoss is Q_loss in W, leakage from the tank to the ambient air.
func (params *TankParameters) StandingLoss(tankK, ambientC float64) float64 {
	return params.LossCoefficient * params.SurfaceArea * (tankK - CelsiusToKelvin(ambientC))
}
