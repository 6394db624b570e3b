package device

import "github.com/Agrid-Dev/heatpumpsim/internal/ports"

// Device binds an identity to the simulation service exposed by the controllers.
type Device struct {
	ID  string
	Svc ports.SimulationService
}

func New(id string, svc ports.SimulationService) *Device {
	return &Device{ID: id, Svc: svc}
}
