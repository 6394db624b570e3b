package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
	"github.com/google/uuid"
)

// Observer is notified of every finished run, failed ones included.
type Observer interface {
	ObserveRun(*Run)
}

// Service holds the current scenario and the last run. Runs execute on a snapshot of the
// scenario, so setters never affect a run in progress.
type Service struct {
	mu   sync.RWMutex
	s    Scenario
	last *Run

	logger   *slog.Logger
	observer Observer
}

func New(initial Scenario, logger *slog.Logger, observer Observer) (*Service, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{s: initial, logger: logger, observer: observer}, nil
}

func (svc *Service) Get() Scenario {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.s
}

// update applies fn to a copy of the scenario and keeps the copy only if it validates.
func (svc *Service) update(fn func(*Scenario) error) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	next := svc.s
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	svc.s = next
	return nil
}

func (svc *Service) SetInitialTankTemperature(k float64) error {
	return svc.update(func(s *Scenario) error {
		s.InitialTankTemperature = k
		return nil
	})
}

// SetThresholds moves both hysteresis thresholds at once, so a band can be shifted past the
// current one without an intermediate inverted state.
func (svc *Service) SetThresholds(on, off float64) error {
	return svc.Apply(Patch{OnThreshold: &on, OffThreshold: &off})
}

// Patch is a partial update of the scalar settings, in kelvin. Nil fields are kept.
type Patch struct {
	InitialTankTemperature *float64
	OnThreshold            *float64
	OffThreshold           *float64
	SetpointTemperature    *float64
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.InitialTankTemperature == nil && p.OnThreshold == nil &&
		p.OffThreshold == nil && p.SetpointTemperature == nil
}

// Apply validates the scenario with every field of p set and commits all of them, or none.
func (svc *Service) Apply(p Patch) error {
	return svc.update(func(s *Scenario) error {
		setIf(&s.InitialTankTemperature, p.InitialTankTemperature)
		setIf(&s.Tank.OnThreshold, p.OnThreshold)
		setIf(&s.Tank.OffThreshold, p.OffThreshold)
		setIf(&s.Building.SetpointTemperature, p.SetpointTemperature)
		return nil
	})
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func (svc *Service) SetOnThreshold(k float64) error {
	return svc.update(func(s *Scenario) error {
		s.Tank.OnThreshold = k
		return nil
	})
}

func (svc *Service) SetOffThreshold(k float64) error {
	return svc.update(func(s *Scenario) error {
		s.Tank.OffThreshold = k
		return nil
	})
}

func (svc *Service) SetSetpointTemperature(k float64) error {
	return svc.update(func(s *Scenario) error {
		s.Building.SetpointTemperature = k
		return nil
	})
}

func (svc *Service) SetAmbient(a thermal.AmbientSeries) error {
	return svc.update(func(s *Scenario) error {
		s.Ambient = a
		return nil
	})
}

func (svc *Service) SetCOPSamples(samples []thermal.COPSample) error {
	return svc.update(func(s *Scenario) error {
		s.COPSamples = append([]thermal.COPSample(nil), samples...)
		return nil
	})
}

// ApplyPreset replaces building, tank and initial temperature with the preset's values.
// Ambient, COP data and solver settings are kept.
func (svc *Service) ApplyPreset(name string) error {
	p, err := thermal.LookupPreset(name)
	if err != nil {
		return err
	}
	return svc.update(func(s *Scenario) error {
		s.Preset = p.Name
		s.Building = p.Building
		s.Tank = p.Tank
		s.InitialTankTemperature = p.InitialTankTemperature
		return nil
	})
}

// Last returns the most recently started run recorded by Run. It may have been computed from
// settings that have changed since.
func (svc *Service) Last() (*Run, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.last, svc.last != nil
}

// Run simulates the current scenario and records the outcome as the last run.
func (svc *Service) Run(ctx context.Context) (*Run, error) {
	run, err := svc.RunScenario(ctx, svc.Get())
	if run != nil {
		svc.record(run)
	}
	return run, err
}

// record keeps run as the last one unless a run started after it is already recorded.
func (svc *Service) record(run *Run) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.last != nil && svc.last.StartedAt.After(run.StartedAt) {
		return
	}
	svc.last = run
}

type outcome struct {
	res *thermal.Result
	err error
}

// RunScenario simulates sc without touching the current scenario. A context cancelled before
// the run starts means no work; one cancelled during the run discards its result.
func (svc *Service) RunScenario(ctx context.Context, sc Scenario) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString(), Preset: sc.Preset, StartedAt: time.Now()}
	logger := svc.logger.With("run_id", run.ID)
	logger.Debug("simulation started", "preset", sc.Preset)

	done := make(chan outcome, 1)
	go func() {
		res, err := thermal.Simulate(sc.Input())
		done <- outcome{res, err}
	}()

	var o outcome
	select {
	case <-ctx.Done():
		logger.Warn("simulation cancelled, result discarded", "error", ctx.Err())
		return nil, ctx.Err()
	case o = <-done:
	}

	run.Duration = time.Since(run.StartedAt)
	run.Result, run.Err = o.res, o.err
	if svc.observer != nil {
		svc.observer.ObserveRun(run)
	}
	if o.err != nil {
		logger.Error("simulation failed", "error", o.err, "kind", Kind(o.err))
		return run, fmt.Errorf("run %s: %w", run.ID, o.err)
	}
	logger.Info("simulation finished",
		"duration", run.Duration,
		"delivered_kwh", o.res.DeliveredEnergyKWh(),
		"average_cop", o.res.AverageCOP,
		"activations", o.res.Activations,
	)
	return run, nil
}

// Kind names the error kind of err, or "unknown".
func Kind(err error) string {
	switch {
	case errors.Is(err, thermal.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, thermal.ErrDomain):
		return "domain"
	case errors.Is(err, thermal.ErrConfiguration):
		return "configuration"
	case errors.Is(err, thermal.ErrIntegration):
		return "integration"
	}
	return "unknown"
}
