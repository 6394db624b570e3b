// Package metrics instruments simulation runs with Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/Agrid-Dev/heatpumpsim/internal/scenario"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heatpumpsim"

type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	deliveredEnergy   prometheus.Gauge
	electricalEnergy  prometheus.Gauge
	averageCOP        prometheus.Gauge
	activations       prometheus.Gauge
	finalTankTemp     prometheus.Gauge
	solverSteps       *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Simulation runs by outcome (ok or the error kind).",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of simulation runs.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		deliveredEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_delivered_energy_kwh",
			Help:      "Heat delivered to the tank in the last successful run.",
		}),
		electricalEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_electrical_energy_kwh",
			Help:      "Electrical energy drawn by the heat pump in the last successful run.",
		}),
		averageCOP: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_average_cop",
			Help:      "Average COP over the reporting grid of the last successful run.",
		}),
		activations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_activations",
			Help:      "Heat source activations in the last successful run.",
		}),
		finalTankTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_final_tank_temperature_celsius",
			Help:      "Tank temperature at the end of the last successful run.",
		}),
		solverSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_steps_total",
			Help:      "Integrator steps by result (accepted or rejected).",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.deliveredEnergy,
		m.electricalEnergy,
		m.averageCOP,
		m.activations,
		m.finalTankTemp,
		m.solverSteps,
		m.httpRequestsTotal,
	)
	return m
}

// ObserveRun implements scenario.Observer.
func (m *Metrics) ObserveRun(run *scenario.Run) {
	if m == nil || run == nil {
		return
	}
	m.runDuration.Observe(run.Duration.Seconds())
	if !run.Succeeded() {
		m.runsTotal.WithLabelValues(scenario.Kind(run.Err)).Inc()
		return
	}
	m.runsTotal.WithLabelValues("ok").Inc()

	s := run.Summary()
	m.deliveredEnergy.Set(s.DeliveredEnergyKWh)
	m.electricalEnergy.Set(s.ElectricalEnergyKWh)
	m.averageCOP.Set(s.AverageCOP)
	m.activations.Set(float64(s.Activations))
	m.finalTankTemp.Set(s.FinalTankTemperature)
	m.solverSteps.WithLabelValues("accepted").Add(float64(run.Result.Solver.Accepted))
	m.solverSteps.WithLabelValues("rejected").Add(float64(run.Result.Solver.Rejected))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests to route by response status.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var _ scenario.Observer = (*Metrics)(nil)
