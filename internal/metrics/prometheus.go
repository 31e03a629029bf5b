package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes engine metrics to Prometheus. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	iterations    prometheus.Counter
	neutralP80    *prometheus.GaugeVec
	historyDepth  prometheus.Gauge
	orderingFails prometheus.Counter
}

// New creates a recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskquant_stage_runs_total",
				Help: "Total number of pipeline stage executions",
			},
			[]string{"stage"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskquant_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskquant_alerts_total",
				Help: "Alert tags emitted by risk ranking",
			},
			[]string{"alert"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskquant_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskquant_simulation_iterations_total",
			Help: "Monte Carlo iterations executed",
		}),
		neutralP80: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskquant_neutral_p80_cost",
				Help: "Latest neutral-scenario P80 cost per source",
			},
			[]string{"source"},
		),
		historyDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskquant_history_risks",
			Help: "Risks with recorded snapshot history",
		}),
		orderingFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskquant_scenario_ordering_violations_total",
			Help: "Scenario time-to-critical ordering violations detected",
		}),
	}
}

// ObserveStage records one execution of a pipeline stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(stage).Inc()
	r.latency.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordAlert counts an emitted alert tag.
func (r *Recorder) RecordAlert(alert string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(alert).Inc()
}

// RecordIterations adds simulated iterations.
func (r *Recorder) RecordIterations(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.iterations.Add(float64(n))
}

// RecordBaseline records the neutral P80 for a source.
func (r *Recorder) RecordBaseline(source string, p80 float64) {
	if r == nil {
		return
	}
	r.neutralP80.WithLabelValues(source).Set(p80)
}

// RecordHistoryRisks records how many risks carry history.
func (r *Recorder) RecordHistoryRisks(n int) {
	if r == nil {
		return
	}
	r.historyDepth.Set(float64(n))
}

// RecordOrderingViolation counts a scenario ordering violation.
func (r *Recorder) RecordOrderingViolation() {
	if r == nil {
		return
	}
	r.orderingFails.Inc()
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
