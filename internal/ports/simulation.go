package ports

import (
	"context"

	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
)

// SimulationService is the control-plane port used by controllers (HTTP/MQTT/Modbus).
// Temperatures are in kelvin.
type SimulationService interface {
	Get() scenario.Scenario
	SetInitialTankTemperature(float64) error
	SetOnThreshold(float64) error
	SetOffThreshold(float64) error
	SetSetpointTemperature(float64) error
	SetThresholds(on, off float64) error
	// Apply commits every field of the patch or none of them.
	Apply(scenario.Patch) error
	ApplyPreset(string) error
	Run(context.Context) (*scenario.Run, error)
	RunScenario(context.Context, scenario.Scenario) (*scenario.Run, error)
	Last() (*scenario.Run, bool)
}
