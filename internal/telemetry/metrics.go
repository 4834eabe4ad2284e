// Package telemetry exposes run and update counters as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turbolytics/duesync/internal/catalog"
)

const namespace = "duesync"

type Metrics struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	fetched        prometheus.Counter
	eligible       prometheus.Counter
	updates        *prometheus.CounterVec
	updateAttempts prometheus.Counter
	runDuration    prometheus.Histogram
}

// New registers the collectors on a private registry so several instances
// can live in one process.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by terminal outcome.",
		}, []string{"outcome"}),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Records read from the source.",
		}),
		eligible: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_eligible_total",
			Help:      "Fetched records that were due and unprocessed.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Record updates by final result.",
		}, []string{"result"}),
		updateAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_attempts_total",
			Help:      "Update calls issued to the source, retries included.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.runs,
		m.fetched,
		m.eligible,
		m.updates,
		m.updateAttempts,
		m.runDuration,
	)
	return m
}

// ObserveAttempt matches dispatcher.AttemptHook.
func (m *Metrics) ObserveAttempt(_ string, _ int, _ error) {
	m.updateAttempts.Inc()
}

func (m *Metrics) ObserveRun(s catalog.Summary) {
	outcome := "failed"
	if s.Completed() {
		outcome = "completed"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.fetched.Add(float64(s.Fetched))
	m.eligible.Add(float64(s.Eligible))
	m.updates.WithLabelValues("updated").Add(float64(s.Updated))
	m.updates.WithLabelValues("failed").Add(float64(s.Failed))
	m.runDuration.Observe(s.Duration.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
