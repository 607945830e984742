package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tempslope/tempslope/agent/internal/compute"
)

const namespace = "tempslope"

// trendStates are the values of the state label on trend_state, in order.
var trendStates = []string{
	compute.StateRising,
	compute.StateFalling,
	compute.StateStable,
	compute.StateUnknown,
}

// Exporter publishes the latest compute.Result per sensor as Prometheus
// metrics on its own registry.
type Exporter struct {
	reg *prometheus.Registry

	temperature *prometheus.GaugeVec
	slope       *prometheus.GaugeVec
	historySum  *prometheus.GaugeVec
	uptime      *prometheus.GaugeVec
	trendState  *prometheus.GaugeVec
	samples     *prometheus.CounterVec
}

// New registers the tempslope collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Exporter{
		reg: reg,
		temperature: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last valid temperature read from the sensor.",
		}, []string{"sensor", "type"}),
		slope: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slope_celsius_per_hour",
			Help:      "Rate of change derived from the sensor's change history.",
		}, []string{"sensor"}),
		historySum: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_sum_celsius",
			Help:      "Sum of the recorded changes in the history window.",
		}, []string{"sensor"}),
		uptime: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_ratio",
			Help:      "Fraction of the last 20 reads that returned a valid value [0,1].",
		}, []string{"sensor"}),
		trendState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trend_state",
			Help:      "Current trend, 1 for the active state and 0 otherwise.",
		}, []string{"sensor", "state"}),
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Sensor reads by result (ok|error).",
		}, []string{"sensor", "result"}),
	}
}

// Observe updates every metric for r.SensorID.
// The temperature gauge keeps its previous value when the read failed.
func (e *Exporter) Observe(r *compute.Result) {
	id := r.SensorID
	if r.Temperature.Valid() {
		e.temperature.WithLabelValues(id, r.SensorType).Set(r.Temperature.Float())
		e.samples.WithLabelValues(id, "ok").Inc()
	} else {
		e.samples.WithLabelValues(id, "error").Inc()
	}
	e.slope.WithLabelValues(id).Set(r.SlopePerHour.Float())
	e.historySum.WithLabelValues(id).Set(r.HistorySum.Float())
	e.uptime.WithLabelValues(id).Set(r.UptimePct / 100)
	for _, s := range trendStates {
		v := 0.0
		if s == r.State {
			v = 1
		}
		e.trendState.WithLabelValues(id, s).Set(v)
	}
}

// Forget drops every series of a sensor that was removed from the config.
func (e *Exporter) Forget(sensorID string) {
	l := prometheus.Labels{"sensor": sensorID}
	e.temperature.DeletePartialMatch(l)
	e.slope.DeletePartialMatch(l)
	e.historySum.DeletePartialMatch(l)
	e.uptime.DeletePartialMatch(l)
	e.trendState.DeletePartialMatch(l)
	e.samples.DeletePartialMatch(l)
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.reg }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}
