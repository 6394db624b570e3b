package thermal

import (
	"errors"
	"fmt"

	"github.com/Agrid-Dev/heatpumpsim/internal/ode"
)

// TankDerivative is dT_tank/dt in K/s:
//
//	(Q_hp - Q_load - Q_loss) / C_tank
//
// with Q_hp applied only while the heat source is active.
func TankDerivative(t, tankK float64, active bool, building BuildingParameters, tank TankParameters, ambient AmbientSeries) float64 {
	ambientC := ambient.At(t)
	var qhp float64
	if active {
		qhp = tank.CondenserOutput(tankK)
	}
	return (qhp - HeatLoad(ambientC, building) - tank.StandingLoss(tankK, ambientC)) / tank.Capacity
}

// Trajectory is the tank temperature at the reporting times together with the heat source
// state that was in force there.
type Trajectory struct {
	Times        []float64
	Temperatures []float64 // K
	Active       []bool
	Activations  int
	Stats        ode.Stats
}

type tankProblem struct {
	building BuildingParameters
	tank     TankParameters
	ambient  AmbientSeries
	ctrl     *HysteresisController
}

// integrateTank runs the tank equation over times with a fresh controller. The controller is
// consulted once per integrator step, at the step's start, and held for all stages of it.
func integrateTank(p tankProblem, initialK float64, times []float64, solver SolverSettings) (Trajectory, error) {
	tr := Trajectory{
		Times:  times,
		Active: make([]bool, len(times)),
	}
	sol, err := ode.Solve(ode.Problem{
		F: func(t, y float64) float64 {
			return TankDerivative(t, y, p.ctrl.HeatSourceActive(), p.building, p.tank, p.ambient)
		},
		Y0:    initialK,
		TEval: times,
	}, ode.Settings{
		RelTol:   solver.RelTol,
		AbsTol:   solver.AbsTol,
		MaxStep:  solver.MaxStep,
		MaxSteps: solver.MaxSteps,
		BeforeStep: func(t, y float64) {
			p.ctrl.Observe(t, y)
		},
		Report: func(i int, _, _ float64) {
			tr.Active[i] = p.ctrl.HeatSourceActive()
		},
	})
	tr.Stats = sol.Stats
	if err != nil {
		if errors.Is(err, ode.ErrInvalidSettings) {
			return tr, fmt.Errorf("%w: %v", ErrInvalidSolver, err)
		}
		return tr, fmt.Errorf("%w: %w", ErrIntegration, err)
	}
	tr.Temperatures = sol.Y
	tr.Activations = p.ctrl.Activations()
	return tr, nil
}
