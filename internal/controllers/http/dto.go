package httpctrl

import (
	"fmt"

	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

// Temperatures are kelvin except where a field name says _c.

type buildingDTO struct {
	WallArea            float64 `json:"wall_area"`
	WallUValue          float64 `json:"wall_u_value"`
	RoofArea            float64 `json:"roof_area"`
	RoofUValue          float64 `json:"roof_u_value"`
	SetpointTemperature float64 `json:"setpoint_temperature"`
}

type tankDTO struct {
	Capacity             float64 `json:"capacity"`
	LossCoefficient      float64 `json:"loss_coefficient"`
	SurfaceArea          float64 `json:"surface_area"`
	CondenserCoefficient float64 `json:"condenser_coefficient"`
	CondenserArea        float64 `json:"condenser_area"`
	CondenserTemperature float64 `json:"condenser_temperature"`
	OnThreshold          float64 `json:"on_threshold"`
	OffThreshold         float64 `json:"off_threshold"`
}

type ambientDTO struct {
	TimesSeconds  []float64 `json:"times_s"`
	TemperaturesC []float64 `json:"temperatures_c"`
}

type scenarioDTO struct {
	DeviceID               string      `json:"device_id"`
	Preset                 string      `json:"preset,omitempty"`
	InitialTankTemperature float64     `json:"initial_tank_temperature"`
	InitiallyActive        bool        `json:"initially_active"`
	HorizonSeconds         float64     `json:"horizon_seconds"`
	ReportingPoints        int         `json:"reporting_points"`
	COPSamples             int         `json:"cop_samples"`
	Building               buildingDTO `json:"building"`
	Tank                   tankDTO     `json:"tank"`
	Ambient                ambientDTO  `json:"ambient"`
}

func toScenarioDTO(s scenario.Scenario) scenarioDTO {
	in := s.Input()
	times, temps := s.Ambient.Samples()
	return scenarioDTO{
		Preset:                 s.Preset,
		InitialTankTemperature: s.InitialTankTemperature,
		InitiallyActive:        s.InitiallyActive,
		HorizonSeconds:         in.Horizon,
		ReportingPoints:        in.ReportingPoints,
		COPSamples:             len(s.COPSamples),
		Building: buildingDTO{
			WallArea:            s.Building.WallArea,
			WallUValue:          s.Building.WallUValue,
			RoofArea:            s.Building.RoofArea,
			RoofUValue:          s.Building.RoofUValue,
			SetpointTemperature: s.Building.SetpointTemperature,
		},
		Tank: tankDTO{
			Capacity:             s.Tank.Capacity,
			LossCoefficient:      s.Tank.LossCoefficient,
			SurfaceArea:          s.Tank.SurfaceArea,
			CondenserCoefficient: s.Tank.CondenserCoefficient,
			CondenserArea:        s.Tank.CondenserArea,
			CondenserTemperature: s.Tank.CondenserTemperature,
			OnThreshold:          s.Tank.OnThreshold,
			OffThreshold:         s.Tank.OffThreshold,
		},
		Ambient: ambientDTO{TimesSeconds: times, TemperaturesC: temps},
	}
}

type seriesDTO struct {
	TimesSeconds        []float64 `json:"times_s"`
	TankTemperatureC    []float64 `json:"tank_temperature_c"`
	AmbientTemperatureC []float64 `json:"ambient_temperature_c"`
	HeatSourceActive    []bool    `json:"heat_source_active"`
	HeatPumpOutputW     []float64 `json:"heat_pump_output_w"`
	COP                 []float64 `json:"cop"`
}

type resultDTO struct {
	scenario.Summary
	Series *seriesDTO `json:"series,omitempty"`
}

func toResultDTO(run *scenario.Run, series bool) resultDTO {
	out := resultDTO{Summary: run.Summary()}
	if series && run.Result != nil {
		res := run.Result
		out.Series = &seriesDTO{
			TimesSeconds:        res.Times,
			TankTemperatureC:    res.TankTemperaturesC,
			AmbientTemperatureC: res.AmbientTemperatures,
			HeatSourceActive:    res.HeatSourceActive,
			HeatPumpOutputW:     res.HeatPumpOutput,
			COP:                 res.COP,
		}
	}
	return out
}

type presetDTO struct {
	Name                   string      `json:"name"`
	Description            string      `json:"description"`
	WaterMassKg            float64     `json:"water_mass_kg"`
	InitialTankTemperature float64     `json:"initial_tank_temperature"`
	Building               buildingDTO `json:"building"`
	Tank                   tankDTO     `json:"tank"`
}

func toPresetDTO(p thermal.Preset) presetDTO {
	sc := toScenarioDTO(scenario.Scenario{Building: p.Building, Tank: p.Tank})
	return presetDTO{
		Name:                   p.Name,
		Description:            p.Description,
		WaterMassKg:            p.WaterMass,
		InitialTankTemperature: p.InitialTankTemperature,
		Building:               sc.Building,
		Tank:                   sc.Tank,
	}
}

type copSampleDTO struct {
	OutdoorTemperatureC float64 `json:"outdoor_temp_C"`
	COP                 float64 `json:"COP"`
}

type ambientSampleDTO struct {
	TimeSeconds  float64 `json:"time_s"`
	TemperatureC float64 `json:"temperature_c"`
}

// thresholdsDTO moves the whole hysteresis band in one request.
type thresholdsDTO struct {
	On  *float64 `json:"on"`
	Off *float64 `json:"off"`
}

func (d thresholdsDTO) values() (on, off float64, err error) {
	if d.On == nil || d.Off == nil {
		return 0, 0, fmt.Errorf("%w: thresholds need both 'on' and 'off'", thermal.ErrConfiguration)
	}
	return *d.On, *d.Off, nil
}

// simulateRequest overrides parts of a base scenario: the current one, or a preset's.
type simulateRequest struct {
	Preset                 *string            `json:"preset"`
	InitialTankTemperature *float64           `json:"initial_tank_temperature"`
	InitiallyActive        *bool              `json:"initially_active"`
	OnThreshold            *float64           `json:"on_threshold"`
	OffThreshold           *float64           `json:"off_threshold"`
	SetpointTemperature    *float64           `json:"setpoint_temperature"`
	HorizonSeconds         *float64           `json:"horizon_seconds"`
	ReportingPoints        *int               `json:"reporting_points"`
	AmbientTemperaturesC   []float64          `json:"ambient_temperatures_c"`
	AmbientSamples         []ambientSampleDTO `json:"ambient_samples"`
	COPSamples             []copSampleDTO     `json:"cop_samples"`
	IncludeSeries          bool               `json:"include_series"`
}

// Limits on one ad hoc run. A run cannot be interrupted once started, so these bound the work
// a single request can cause.
const (
	maxHorizonSeconds  = 31 * 24 * 3600.0
	maxReportingPoints = 100000
)

func (req *simulateRequest) apply(base scenario.Scenario) (scenario.Scenario, error) {
	sc := base
	if req.HorizonSeconds != nil && *req.HorizonSeconds > maxHorizonSeconds {
		return sc, fmt.Errorf("%w: horizon_seconds above %g", thermal.ErrConfiguration, maxHorizonSeconds)
	}
	if req.ReportingPoints != nil && *req.ReportingPoints > maxReportingPoints {
		return sc, fmt.Errorf("%w: reporting_points above %d", thermal.ErrConfiguration, maxReportingPoints)
	}
	if req.Preset != nil {
		p, err := thermal.LookupPreset(*req.Preset)
		if err != nil {
			return sc, err
		}
		sc.Preset = p.Name
		sc.Building = p.Building
		sc.Tank = p.Tank
		sc.InitialTankTemperature = p.InitialTankTemperature
	}
	setIf(&sc.InitialTankTemperature, req.InitialTankTemperature)
	setIf(&sc.InitiallyActive, req.InitiallyActive)
	setIf(&sc.Tank.OnThreshold, req.OnThreshold)
	setIf(&sc.Tank.OffThreshold, req.OffThreshold)
	setIf(&sc.Building.SetpointTemperature, req.SetpointTemperature)
	setIf(&sc.Horizon, req.HorizonSeconds)
	setIf(&sc.ReportingPoints, req.ReportingPoints)

	switch {
	case len(req.AmbientTemperaturesC) > 0 && len(req.AmbientSamples) > 0:
		return sc, fmt.Errorf("%w: give ambient_temperatures_c or ambient_samples, not both", thermal.ErrConfiguration)
	case len(req.AmbientTemperaturesC) > 0:
		a, err := thermal.UniformAmbientSeries(req.AmbientTemperaturesC, sc.Input().Horizon)
		if err != nil {
			return sc, err
		}
		sc.Ambient = a
	case len(req.AmbientSamples) > 0:
		times := make([]float64, len(req.AmbientSamples))
		temps := make([]float64, len(req.AmbientSamples))
		for i, s := range req.AmbientSamples {
			times[i], temps[i] = s.TimeSeconds, s.TemperatureC
		}
		a, err := thermal.NewAmbientSeries(times, temps)
		if err != nil {
			return sc, err
		}
		sc.Ambient = a
	}

	if req.COPSamples != nil {
		sc.COPSamples = make([]thermal.COPSample, len(req.COPSamples))
		for i, c := range req.COPSamples {
			sc.COPSamples[i] = thermal.COPSample{OutdoorTemperature: c.OutdoorTemperatureC, COP: c.COP}
		}
	}
	return sc, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
