package httpctrl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Agrid-Dev/heatpumpsim/internal/metrics"
	"github.com/Agrid-Dev/heatpumpsim/internal/testutil"
	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
	"github.com/prometheus/client_golang/prometheus"
)

func TestGET_v1_ReturnsScenario(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[scenarioDTO](t, rr)
	if got.DeviceID != "default" {
		t.Fatalf("expected device_id=default, got %v", got.DeviceID)
	}
	if got.Preset != "D" {
		t.Fatalf("expected preset=D, got %v", got.Preset)
	}
	if got.Tank.OnThreshold != 313.15 || got.Tank.OffThreshold != 333.15 {
		t.Fatalf("unexpected thresholds %+v", got.Tank)
	}
	if got.HorizonSeconds != thermal.DefaultHorizon || got.ReportingPoints != thermal.DefaultReportingPoints {
		t.Fatalf("expected defaults, got horizon=%v points=%v", got.HorizonSeconds, got.ReportingPoints)
	}
	if got.COPSamples != 5 {
		t.Fatalf("expected 5 COP samples, got %v", got.COPSamples)
	}
}

func TestPOST_thresholds(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/on_threshold", 310.0)
	assertStatus(t, rr, http.StatusOK)
	if !f.SetOnCalled || f.SetOnArg != 310 {
		t.Fatalf("expected SetOnThreshold(310), got called=%v arg=%v", f.SetOnCalled, f.SetOnArg)
	}

	rr = postValueEndpoint(t, srv, "/v1/off_threshold", 335.0)
	assertStatus(t, rr, http.StatusOK)
	got := decodeJSON[scenarioDTO](t, rr)
	if got.Tank.OffThreshold != 335 {
		t.Fatalf("expected off_threshold=335 in response, got %v", got.Tank.OffThreshold)
	}
}

func TestPOST_thresholdBand(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/thresholds", map[string]float64{"on": 335.15, "off": 343.15})
	assertStatus(t, rr, http.StatusOK)
	if !f.SetThresholdsCalled || f.SetThresholdsArgs != [2]float64{335.15, 343.15} {
		t.Fatalf("expected SetThresholds(335.15, 343.15), got called=%v args=%v", f.SetThresholdsCalled, f.SetThresholdsArgs)
	}
	got := decodeJSON[scenarioDTO](t, rr)
	if got.Tank.OnThreshold != 335.15 || got.Tank.OffThreshold != 343.15 {
		t.Fatalf("unexpected thresholds in response: %+v", got.Tank)
	}

	f.SetThresholdsCalled = false
	rr = postValueEndpoint(t, srv, "/v1/thresholds", map[string]float64{"on": 320})
	assertStatus(t, rr, http.StatusBadRequest)
	assertErrorResponse(t, rr)
	if f.SetThresholdsCalled {
		t.Fatal("service must not be called when a threshold is missing")
	}

	f.SetThresholdsErr = thermal.ErrThresholdOrder
	rr = postValueEndpoint(t, srv, "/v1/thresholds", map[string]float64{"on": 340, "off": 330})
	assertStatus(t, rr, http.StatusBadRequest)
	assertErrorResponse(t, rr)
}

func TestPOST_threshold_ErrorFromService(t *testing.T) {
	srv, f := newTestServer()
	f.SetOnErr = thermal.ErrThresholdOrder

	rr := postValueEndpoint(t, srv, "/v1/on_threshold", 400.0)
	assertStatus(t, rr, http.StatusBadRequest)
	msg := assertErrorResponse(t, rr)
	if !strings.Contains(msg, "on-threshold") {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestPOST_initial_and_setpoint(t *testing.T) {
	srv, f := newTestServer()

	assertStatus(t, postValueEndpoint(t, srv, "/v1/initial_tank_temperature", 320.5), http.StatusOK)
	assertStatus(t, postValueEndpoint(t, srv, "/v1/setpoint_temperature", 294.15), http.StatusOK)

	if f.S.InitialTankTemperature != 320.5 {
		t.Fatalf("expected initial=320.5, got %v", f.S.InitialTankTemperature)
	}
	if f.S.Building.SetpointTemperature != 294.15 {
		t.Fatalf("expected setpoint=294.15, got %v", f.S.Building.SetpointTemperature)
	}
}

func TestPOST_InvalidPayload(t *testing.T) {
	srv, _ := newTestServer()

	// Wrong key => Value missing
	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/on_threshold", map[string]any{
		"threshold": 300,
	})
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)

	// Wrong type
	rr = postValueEndpoint(t, srv, "/v1/setpoint_temperature", "warm")
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_preset(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/preset", "B")
	assertStatus(t, rr, http.StatusOK)
	if !f.ApplyPresetCalled || f.ApplyPresetArg != "B" {
		t.Fatalf("expected ApplyPreset(B), got called=%v arg=%v", f.ApplyPresetCalled, f.ApplyPresetArg)
	}

	f.ApplyPresetErr = thermal.ErrUnknownPreset
	rr = postValueEndpoint(t, srv, "/v1/preset", "Q")
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_run_and_GET_result(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result", nil)
	assertStatus(t, rr, http.StatusNotFound)

	rr = doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/run", nil)
	assertStatus(t, rr, http.StatusOK)
	if f.RunCalls != 1 {
		t.Fatalf("expected one run, got %d", f.RunCalls)
	}
	got := decodeJSON[map[string]any](t, rr)
	if got["average_cop"] != 2.5 || got["delivered_energy_kwh"] != 10.0 {
		t.Fatalf("unexpected summary %v", got)
	}
	if _, ok := got["series"]; ok {
		t.Fatalf("series not requested but present")
	}

	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result?series=true", nil)
	assertStatus(t, rr, http.StatusOK)
	res := decodeJSON[resultDTO](t, rr)
	if res.RunID != testutil.CannedRun().ID {
		t.Fatalf("expected canned run id, got %q", res.RunID)
	}
	if res.Series == nil || len(res.Series.TimesSeconds) != 2 {
		t.Fatalf("expected 2-point series, got %+v", res.Series)
	}
}

func TestPOST_run_Error(t *testing.T) {
	srv, f := newTestServer()
	f.RunErr = thermal.ErrNonPositiveCOP

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/run", nil)
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_simulate(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/simulate", map[string]any{
		"preset":                 "a",
		"on_threshold":           311.15,
		"horizon_seconds":        7200,
		"ambient_temperatures_c": []float64{-5, 0, 5},
		"cop_samples": []map[string]float64{
			{"outdoor_temp_C": 0, "COP": 2.6},
			{"outdoor_temp_C": 10, "COP": 2.8},
		},
		"include_series": true,
	})
	assertStatus(t, rr, http.StatusOK)

	if !f.RunScenarioCalled {
		t.Fatalf("expected RunScenario to be called")
	}
	sc := f.RunScenarioArg
	if sc.Preset != "A" || sc.Building.WallArea != 85 {
		t.Fatalf("expected preset A applied, got %q wall=%v", sc.Preset, sc.Building.WallArea)
	}
	if sc.Tank.OnThreshold != 311.15 {
		t.Fatalf("expected on threshold override, got %v", sc.Tank.OnThreshold)
	}
	if sc.Ambient.At(3600) != 0 || sc.Ambient.At(7200) != 5 {
		t.Fatalf("expected ambient spread over 7200 s, got %v/%v", sc.Ambient.At(3600), sc.Ambient.At(7200))
	}
	if len(sc.COPSamples) != 2 {
		t.Fatalf("expected 2 COP samples, got %d", len(sc.COPSamples))
	}
	if f.S.Preset != "D" {
		t.Fatalf("current scenario must not change, got preset %q", f.S.Preset)
	}
	if res := decodeJSON[resultDTO](t, rr); res.Series == nil {
		t.Fatalf("expected series in response")
	}
}

func TestPOST_simulate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"unknown field", map[string]any{"colour": "red"}},
		{"unknown preset", map[string]any{"preset": "Z"}},
		{"decreasing ambient", map[string]any{"ambient_samples": []map[string]float64{
			{"time_s": 10, "temperature_c": 1}, {"time_s": 0, "temperature_c": 2},
		}}},
		{"both ambient forms", map[string]any{
			"ambient_temperatures_c": []float64{1},
			"ambient_samples":        []map[string]float64{{"time_s": 0, "temperature_c": 2}},
		}},
		{"horizon too long", map[string]any{"horizon_seconds": 1e12}},
		{"too many reporting points", map[string]any{"reporting_points": 50000000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, f := newTestServer()
			rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/simulate", tt.body)
			assertStatus(t, rr, http.StatusBadRequest)
			_ = assertErrorResponse(t, rr)
			if f.RunScenarioCalled {
				t.Fatalf("RunScenario must not be called")
			}
		})
	}
}

func TestGET_presets(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/presets", nil)
	assertStatus(t, rr, http.StatusOK)
	got := decodeJSON[[]presetDTO](t, rr)
	if len(got) != 4 || got[0].Name != "A" || got[3].Name != "D" {
		t.Fatalf("unexpected presets %+v", got)
	}
	if got[2].WaterMassKg != 240 || got[2].Tank.Capacity != 240*thermal.WaterHeatCapacity {
		t.Fatalf("unexpected preset C %+v", got[2])
	}
}

func TestGET_healthz(t *testing.T) {
	srv, _ := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.srv.Handler.ServeHTTP(rr, req)

	assertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("expected body 'ok', got %s", rr.Body.String())
	}
}

func TestGET_metrics(t *testing.T) {
	f := testutil.NewFakeSimulationService()
	m := metrics.New(prometheus.NewRegistry())
	srv := New(f, ":0", "default", m)

	doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/metrics", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `heatpumpsim_http_requests_total{route="/v1",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", rr.Body.String())
	}

	withoutMetrics, _ := newTestServer()
	rr = doJSONRequest(t, withoutMetrics.srv.Handler, http.MethodGet, "/metrics", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---- test helpers ----

func newTestServer() (*Server, *testutil.FakeSimulationService) {
	f := testutil.NewFakeSimulationService()
	deviceID := "default"
	return New(f, ":0", deviceID, nil), f
}

func doJSONRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal: %v body=%s", err, rr.Body.String())
	}
	return v
}

// Handy when you only care about error responses.
func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON[struct {
		Error string `json:"error"`
	}](t, rr)
	if resp.Error == "" {
		t.Fatalf("expected non-empty error field, got body=%s", rr.Body.String())
	}
	return resp.Error
}

func postValueEndpoint[T any](t *testing.T, srv *Server, path string, value T) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONRequest(t, srv.srv.Handler, http.MethodPost, path, struct {
		Value T `json:"value"`
	}{Value: value})
}
