// Package scenario keeps the current simulation scenario of a running service and executes
// runs against it.
package scenario

import (
	"fmt"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

// Scenario is the complete set of inputs of one simulation.
type Scenario struct {
	Preset                 string
	Building               thermal.BuildingParameters
	Tank                   thermal.TankParameters
	Ambient                thermal.AmbientSeries
	COPSamples             []thermal.COPSample
	InitialTankTemperature float64 // K
	InitiallyActive        bool
	Horizon                float64 // s
	ReportingPoints        int
	Solver                 thermal.SolverSettings
}

// FromPreset builds a scenario from a named preset with a constant ambient temperature.
func FromPreset(name string, ambientC float64, cop []thermal.COPSample) (Scenario, error) {
	p, err := thermal.LookupPreset(name)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{
		Preset:                 p.Name,
		Building:               p.Building,
		Tank:                   p.Tank,
		Ambient:                thermal.ConstantAmbientSeries(ambientC),
		COPSamples:             cop,
		InitialTankTemperature: p.InitialTankTemperature,
	}, nil
}

// Input converts the scenario to a simulation input with defaults applied.
func (s Scenario) Input() thermal.Input {
	return thermal.Input{
		Building:               s.Building,
		Tank:                   s.Tank,
		Ambient:                s.Ambient,
		COPSamples:             append([]thermal.COPSample(nil), s.COPSamples...),
		InitialTankTemperature: s.InitialTankTemperature,
		InitiallyActive:        s.InitiallyActive,
		Horizon:                s.Horizon,
		ReportingPoints:        s.ReportingPoints,
		Solver:                 s.Solver,
	}.WithDefaults()
}

// Validate checks everything a run would check before integrating, the COP fit included.
func (s *Scenario) Validate() error {
	in := s.Input()
	if err := in.Validate(); err != nil {
		return err
	}
	if _, err := thermal.FitCOP(in.COPSamples); err != nil {
		return fmt.Errorf("COP samples: %w", err)
	}
	return nil
}
