package thermal

import (
	"fmt"
	"math"

	"github.com/Agrid-Dev/heatpumpsim/internal/ode"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// SolverSettings tunes the integrator. Zero fields take the package defaults.
type SolverSettings struct {
	MaxStep  float64 // s
	RelTol   float64
	AbsTol   float64
	MaxSteps int
}

func (s SolverSettings) withDefaults() SolverSettings {
	if s.MaxStep == 0 {
		s.MaxStep = DefaultMaxStep
	}
	if s.RelTol == 0 {
		s.RelTol = DefaultRelTol
	}
	if s.AbsTol == 0 {
		s.AbsTol = DefaultAbsTol
	}
	return s
}

func (s *SolverSettings) Validate() error {
	if !finite(s.MaxStep, s.RelTol, s.AbsTol) || s.MaxStep < 0 || s.RelTol < 0 || s.AbsTol < 0 || s.MaxSteps < 0 {
		return ErrInvalidSolver
	}
	return nil
}

// Input is everything one simulation run needs. Zero Horizon, ReportingPoints and Solver
// fields take the defaults (24 h, 1000 points, 100 s step cap).
type Input struct {
	Building               BuildingParameters
	Tank                   TankParameters
	Ambient                AmbientSeries
	COPSamples             []COPSample
	InitialTankTemperature float64 // K
	InitiallyActive        bool
	Horizon                float64 // s
	ReportingPoints        int
	Solver                 SolverSettings
}

// WithDefaults fills zero Horizon, ReportingPoints and Solver fields. A zero MaxSteps becomes
// a budget derived from the horizon and the step cap.
func (in Input) WithDefaults() Input {
	if in.Horizon == 0 {
		in.Horizon = DefaultHorizon
	}
	if in.ReportingPoints == 0 {
		in.ReportingPoints = DefaultReportingPoints
	}
	in.Solver = in.Solver.withDefaults()
	if in.Solver.MaxSteps == 0 {
		in.Solver.MaxSteps = stepBudget(in.Horizon, in.Solver.MaxStep)
	}
	return in
}

// stepBudget bounds the attempted steps of a run at a multiple of the steps the step cap
// alone forces, so a stiff or misconfigured run fails instead of spinning.
func stepBudget(horizon, maxStep float64) int {
	n := math.Ceil(horizon/maxStep) * stepsPerMaxStep
	switch {
	case !(n > minStepBudget):
		return minStepBudget
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int(n)
}

// Validate checks the configuration part of the input. COP samples are checked by the fit.
func (in *Input) Validate() error {
	if err := in.Building.Validate(); err != nil {
		return fmt.Errorf("building: %w", err)
	}
	if err := in.Tank.Validate(); err != nil {
		return fmt.Errorf("tank: %w", err)
	}
	if err := in.Ambient.Validate(); err != nil {
		return err
	}
	if !finite(in.InitialTankTemperature) {
		return fmt.Errorf("initial tank temperature: %w", ErrNonFiniteParameter)
	}
	if in.InitialTankTemperature <= 0 {
		return ErrInvalidInitial
	}
	if !finite(in.Horizon) || in.Horizon <= 0 {
		return ErrInvalidHorizon
	}
	if in.ReportingPoints < 2 {
		return ErrInvalidReporting
	}
	return in.Solver.Validate()
}

// Result is the outcome of one run. All series share the Times grid.
type Result struct {
	Times               []float64 // s
	TankTemperatures    []float64 // K
	TankTemperaturesC   []float64 // display only
	AmbientTemperatures []float64 // °C
	HeatSourceActive    []bool
	HeatPumpOutput      []float64 // Q_hp, W
	COP                 []float64

	DeliveredEnergy  float64 // J, trapezoid of Q_hp
	ElectricalEnergy float64 // J, trapezoid of Q_hp / COP
	AverageCOP       float64
	Activations      int

	COPModel COPModel
	Solver   ode.Stats
}

func (r *Result) DeliveredEnergyKWh() float64  { return r.DeliveredEnergy / joulesPerKWh }
func (r *Result) ElectricalEnergyKWh() float64 { return r.ElectricalEnergy / joulesPerKWh }

// FinalTankTemperature returns the last reported tank temperature in K.
func (r *Result) FinalTankTemperature() float64 {
	if len(r.TankTemperatures) == 0 {
		return 0
	}
	return r.TankTemperatures[len(r.TankTemperatures)-1]
}

// Simulate runs one independent simulation: it fits the COP model, integrates the tank over
// the horizon with a fresh controller and derives the energy and COP summaries.
func Simulate(in Input) (*Result, error) {
	in = in.WithDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	model, err := FitCOP(in.COPSamples)
	if err != nil {
		return nil, err
	}
	ctrl, err := NewHysteresisController(in.Tank.Hysteresis(), in.InitiallyActive)
	if err != nil {
		return nil, err
	}

	times := floats.Span(make([]float64, in.ReportingPoints), 0, in.Horizon)
	tr, err := integrateTank(tankProblem{
		building: in.Building,
		tank:     in.Tank,
		ambient:  in.Ambient,
		ctrl:     ctrl,
	}, in.InitialTankTemperature, times, in.Solver)
	if err != nil {
		return nil, err
	}

	n := len(times)
	res := &Result{
		Times:               times,
		TankTemperatures:    tr.Temperatures,
		TankTemperaturesC:   make([]float64, n),
		AmbientTemperatures: in.Ambient.AtTimes(times),
		HeatSourceActive:    tr.Active,
		HeatPumpOutput:      make([]float64, n),
		COP:                 make([]float64, n),
		Activations:         tr.Activations,
		COPModel:            model,
		Solver:              tr.Stats,
	}
	electrical := make([]float64, n)
	for i := range times {
		res.TankTemperaturesC[i] = KelvinToCelsius(tr.Temperatures[i])
		cop, err := model.At(res.AmbientTemperatures[i])
		if err != nil {
			return nil, err
		}
		res.COP[i] = cop
		if !tr.Active[i] {
			continue
		}
		res.HeatPumpOutput[i] = in.Tank.CondenserOutput(tr.Temperatures[i])
		if cop <= 0 {
			return nil, fmt.Errorf("%w (t=%gs, COP=%g)", ErrNonPositiveCOP, times[i], cop)
		}
		electrical[i] = res.HeatPumpOutput[i] / cop
	}

	res.DeliveredEnergy = integrate.Trapezoidal(times, res.HeatPumpOutput)
	res.ElectricalEnergy = integrate.Trapezoidal(times, electrical)
	if n > 0 {
		res.AverageCOP = stat.Mean(res.COP, nil)
	}
	return res, nil
}
