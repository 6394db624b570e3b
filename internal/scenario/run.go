package scenario

import (
	"time"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

// Run records one executed simulation.
type Run struct {
	ID        string
	Preset    string
	StartedAt time.Time
	Duration  time.Duration
	Result    *thermal.Result
	Err       error
}

func (r *Run) Succeeded() bool {
	return r != nil && r.Err == nil && r.Result != nil
}

// Summary is the transport view of a run.
type Summary struct {
	RunID                string  `json:"run_id"`
	Preset               string  `json:"preset,omitempty"`
	StartedAt            string  `json:"started_at"`
	DurationSeconds      float64 `json:"duration_seconds"`
	Succeeded            bool    `json:"succeeded"`
	Error                string  `json:"error,omitempty"`
	FinalTankTemperature float64 `json:"final_tank_temperature_c,omitempty"`
	MinTankTemperature   float64 `json:"min_tank_temperature_c,omitempty"`
	MaxTankTemperature   float64 `json:"max_tank_temperature_c,omitempty"`
	DeliveredEnergyKWh   float64 `json:"delivered_energy_kwh"`
	ElectricalEnergyKWh  float64 `json:"electrical_energy_kwh"`
	AverageCOP           float64 `json:"average_cop"`
	Activations          int     `json:"activations"`
	COPA                 float64 `json:"cop_a"`
	COPB                 float64 `json:"cop_b"`
	COPRSquared          float64 `json:"cop_r_squared"`
	AcceptedSteps        int     `json:"accepted_steps"`
	RejectedSteps        int     `json:"rejected_steps"`
}

func (r *Run) Summary() Summary {
	s := Summary{
		RunID:           r.ID,
		Preset:          r.Preset,
		StartedAt:       r.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationSeconds: r.Duration.Seconds(),
		Succeeded:       r.Succeeded(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	res := r.Result
	if res == nil {
		return s
	}
	s.FinalTankTemperature = thermal.KelvinToCelsius(res.FinalTankTemperature())
	if len(res.TankTemperatures) > 0 {
		lo, hi := res.TankTemperatures[0], res.TankTemperatures[0]
		for _, v := range res.TankTemperatures {
			lo, hi = min(lo, v), max(hi, v)
		}
		s.MinTankTemperature = thermal.KelvinToCelsius(lo)
		s.MaxTankTemperature = thermal.KelvinToCelsius(hi)
	}
	s.DeliveredEnergyKWh = res.DeliveredEnergyKWh()
	s.ElectricalEnergyKWh = res.ElectricalEnergyKWh()
	s.AverageCOP = res.AverageCOP
	s.Activations = res.Activations
	s.COPA = res.COPModel.A
	s.COPB = res.COPModel.B
	s.COPRSquared = res.COPModel.RSquared
	s.AcceptedSteps = res.Solver.Accepted
	s.RejectedSteps = res.Solver.Rejected
	return s
}
