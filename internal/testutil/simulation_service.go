package testutil

import (
	"context"
	"time"

	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

// FakeSimulationService is a reusable fake implementing ports.SimulationService.
// Put ONLY what multiple test packages need here.
type FakeSimulationService struct {
	S scenario.Scenario

	SetInitialCalled bool
	SetInitialArg    float64
	SetInitialErr    error

	SetOnCalled bool
	SetOnArg    float64
	SetOnErr    error

	SetOffCalled bool
	SetOffArg    float64
	SetOffErr    error

	SetSetpointCalled bool
	SetSetpointArg    float64
	SetSetpointErr    error

	SetThresholdsCalled bool
	SetThresholdsArgs   [2]float64
	SetThresholdsErr    error

	ApplyCalls []scenario.Patch
	ApplyErr   error

	ApplyPresetCalled bool
	ApplyPresetArg    string
	ApplyPresetErr    error

	RunCalls int
	RunErr   error

	RunScenarioCalled bool
	RunScenarioArg    scenario.Scenario

	// NextRun is returned by Run and RunScenario.
	NextRun *scenario.Run
	LastRun *scenario.Run
}

func NewFakeSimulationService() *FakeSimulationService {
	s, err := scenario.FromPreset(thermal.DefaultPreset, 0, IdealCOPSamples())
	if err != nil {
		panic(err)
	}
	return &FakeSimulationService{S: s, NextRun: CannedRun()}
}

// IdealCOPSamples lie exactly on COP = 2 + 40 / (60 - T).
func IdealCOPSamples() []thermal.COPSample {
	temps := []float64{-10, 0, 10, 20, 30}
	out := make([]thermal.COPSample, len(temps))
	for i, tc := range temps {
		out[i] = thermal.COPSample{OutdoorTemperature: tc, COP: 2 + 40/(thermal.COPReferenceTemperature-tc)}
	}
	return out
}

// CannedRun is a successful run: final tank 47 °C, 10 kWh delivered at an average COP of 2.5,
// 3 activations.
func CannedRun() *scenario.Run {
	return &scenario.Run{
		ID:        "00000000-0000-0000-0000-000000000001",
		Preset:    thermal.DefaultPreset,
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:  20 * time.Millisecond,
		Result: &thermal.Result{
			Times:            []float64{0, 86400},
			TankTemperatures: []float64{318.15, 320.15},
			HeatSourceActive: []bool{false, true},
			DeliveredEnergy:  3.6e7,
			ElectricalEnergy: 1.44e7,
			AverageCOP:       2.5,
			Activations:      3,
			COPModel:         thermal.COPModel{A: 2, B: 40, RSquared: 1, Samples: 5},
		},
	}
}

func (f *FakeSimulationService) Get() scenario.Scenario { return f.S }

func (f *FakeSimulationService) SetInitialTankTemperature(v float64) error {
	f.SetInitialCalled = true
	f.SetInitialArg = v
	if f.SetInitialErr != nil {
		return f.SetInitialErr
	}
	f.S.InitialTankTemperature = v
	return nil
}

func (f *FakeSimulationService) SetOnThreshold(v float64) error {
	f.SetOnCalled = true
	f.SetOnArg = v
	if f.SetOnErr != nil {
		return f.SetOnErr
	}
	f.S.Tank.OnThreshold = v
	return nil
}

func (f *FakeSimulationService) SetOffThreshold(v float64) error {
	f.SetOffCalled = true
	f.SetOffArg = v
	if f.SetOffErr != nil {
		return f.SetOffErr
	}
	f.S.Tank.OffThreshold = v
	return nil
}

func (f *FakeSimulationService) SetSetpointTemperature(v float64) error {
	f.SetSetpointCalled = true
	f.SetSetpointArg = v
	if f.SetSetpointErr != nil {
		return f.SetSetpointErr
	}
	f.S.Building.SetpointTemperature = v
	return nil
}

func (f *FakeSimulationService) SetThresholds(on, off float64) error {
	f.SetThresholdsCalled = true
	f.SetThresholdsArgs = [2]float64{on, off}
	if f.SetThresholdsErr != nil {
		return f.SetThresholdsErr
	}
	f.S.Tank.OnThreshold, f.S.Tank.OffThreshold = on, off
	return nil
}

// Apply records p and applies it only if ApplyErr is nil.
func (f *FakeSimulationService) Apply(p scenario.Patch) error {
	f.ApplyCalls = append(f.ApplyCalls, p)
	if f.ApplyErr != nil {
		return f.ApplyErr
	}
	for dst, v := range map[*float64]*float64{
		&f.S.InitialTankTemperature:       p.InitialTankTemperature,
		&f.S.Tank.OnThreshold:             p.OnThreshold,
		&f.S.Tank.OffThreshold:            p.OffThreshold,
		&f.S.Building.SetpointTemperature: p.SetpointTemperature,
	} {
		if v != nil {
			*dst = *v
		}
	}
	return nil
}

func (f *FakeSimulationService) ApplyPreset(name string) error {
	f.ApplyPresetCalled = true
	f.ApplyPresetArg = name
	if f.ApplyPresetErr != nil {
		return f.ApplyPresetErr
	}
	f.S.Preset = name
	return nil
}

func (f *FakeSimulationService) Run(ctx context.Context) (*scenario.Run, error) {
	f.RunCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.RunErr != nil {
		failed := &scenario.Run{ID: "failed-run", Err: f.RunErr}
		f.LastRun = failed
		return failed, f.RunErr
	}
	f.LastRun = f.NextRun
	return f.NextRun, nil
}

func (f *FakeSimulationService) RunScenario(ctx context.Context, sc scenario.Scenario) (*scenario.Run, error) {
	f.RunScenarioCalled = true
	f.RunScenarioArg = sc
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.RunErr != nil {
		return &scenario.Run{ID: "failed-run", Err: f.RunErr}, f.RunErr
	}
	return f.NextRun, nil
}

func (f *FakeSimulationService) Last() (*scenario.Run, bool) {
	return f.LastRun, f.LastRun != nil
}
