package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Agrid-Dev/heatpumpsim/internal/metrics"
	"github.com/Agrid-Dev/heatpumpsim/internal/ports"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

type Server struct {
	svc      ports.SimulationService
	srv      *http.Server
	deviceID string
	metrics  *metrics.Metrics
}

// New returns a runnable server. m may be nil, in which case /metrics is not served.
func New(svc ports.SimulationService, addr string, deviceID string, m *metrics.Metrics) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, deviceID: deviceID, metrics: m}

	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, m.WrapHandler(route, h))
	}

	// Read
	handle("GET /v1", "/v1", s.handleGet)
	handle("GET /v1/result", "/v1/result", s.handleGetResult)
	handle("GET /v1/presets", "/v1/presets", s.handleGetPresets)

	// Write: one endpoint per variable
	handle("POST /v1/initial_tank_temperature", "/v1/initial_tank_temperature", s.handlePostInitialTemperature)
	handle("POST /v1/on_threshold", "/v1/on_threshold", s.handlePostOnThreshold)
	handle("POST /v1/off_threshold", "/v1/off_threshold", s.handlePostOffThreshold)
	handle("POST /v1/thresholds", "/v1/thresholds", s.handlePostThresholds)
	handle("POST /v1/setpoint_temperature", "/v1/setpoint_temperature", s.handlePostSetpoint)
	handle("POST /v1/preset", "/v1/preset", s.handlePostPreset)

	// Runs
	handle("POST /v1/run", "/v1/run", s.handlePostRun)
	handle("POST /v1/simulate", "/v1/simulate", s.handlePostSimulate)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondScenario(w)
}

func (s *Server) handlePostInitialTemperature(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetInitialTankTemperature)
}

func (s *Server) handlePostOnThreshold(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetOnThreshold)
}

func (s *Server) handlePostOffThreshold(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetOffThreshold)
}

func (s *Server) handlePostThresholds(w http.ResponseWriter, r *http.Request) {
	// body: {"value": {"on": 335.15, "off": 343.15}}
	postValue(s, w, r, func(v thresholdsDTO) error {
		on, off, err := v.values()
		if err != nil {
			return err
		}
		return s.svc.SetThresholds(on, off)
	})
}

func (s *Server) handlePostSetpoint(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetSetpointTemperature)
}

func (s *Server) handlePostPreset(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "B"}
	postValue(s, w, r, s.svc.ApplyPreset)
}

func (s *Server) handlePostRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Run(r.Context())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(run, wantSeries(r)))
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	run, ok := s.svc.Last()
	if !ok {
		writeErr(w, http.StatusNotFound, "no run yet")
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(run, wantSeries(r)))
}

func (s *Server) handlePostSimulate(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req simulateRequest
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	sc, err := req.apply(s.svc.Get())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.svc.RunScenario(r.Context(), sc)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(run, req.IncludeSeries || wantSeries(r)))
}

func (s *Server) handleGetPresets(w http.ResponseWriter, _ *http.Request) {
	names := thermal.PresetNames()
	out := make([]presetDTO, 0, len(names))
	for _, n := range names {
		p, err := thermal.LookupPreset(n)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, toPresetDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- generic helpers ----

func (s *Server) respondScenario(w http.ResponseWriter) {
	dto := toScenarioDTO(s.svc.Get())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondScenario(w)
}

func wantSeries(r *http.Request) bool {
	switch r.URL.Query().Get("series") {
	case "1", "true":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
