// Package metrics exposes Prometheus collectors for the incident workflow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "drdesk"

// Metrics is nil-safe so services can run without a registry.
type Metrics struct {
	incidentsCreated    *prometheus.CounterVec
	allocationConflicts prometheus.Counter
	statusChanges       *prometheus.CounterVec
	partialWrites       *prometheus.CounterVec
	stageSaves          *prometheus.CounterVec
	pendingByStep       *prometheus.GaugeVec
	httpDuration        *prometheus.HistogramVec
	digestLastRun       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		incidentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incidents_created_total",
				Help:      "Incidents created, by site code",
			},
			[]string{"site"},
		),
		allocationConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "allocation_conflicts_total",
				Help:      "Header inserts that hit an already used incident id",
			},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_changes_total",
				Help:      "Header status writes, by canonical status",
			},
			[]string{"status"},
		),
		partialWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partial_writes_total",
				Help:      "Multi-record writes that failed after the header write",
			},
			[]string{"operation"},
		),
		stageSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_saves_total",
				Help:      "Stage record upserts, by stage kind",
			},
			[]string{"kind"},
		),
		pendingByStep: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_incidents",
				Help:      "Pending incidents by resolved next step, as of the last digest run",
			},
			[]string{"step"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route pattern and status code",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route", "code"},
		),
		digestLastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_digest_last_run_timestamp_seconds",
				Help:      "Unix time of the last successful pending digest",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.incidentsCreated,
			m.allocationConflicts,
			m.statusChanges,
			m.partialWrites,
			m.stageSaves,
			m.pendingByStep,
			m.httpDuration,
			m.digestLastRun,
		)
	}
	return m
}

func (m *Metrics) IncidentCreated(site string) {
	if m == nil {
		return
	}
	m.incidentsCreated.WithLabelValues(site).Inc()
}

func (m *Metrics) AllocationConflict() {
	if m == nil {
		return
	}
	m.allocationConflicts.Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) PartialWrite(op string) {
	if m == nil {
		return
	}
	m.partialWrites.WithLabelValues(op).Inc()
}

func (m *Metrics) StageSaved(kind string) {
	if m == nil {
		return
	}
	m.stageSaves.WithLabelValues(kind).Inc()
}

// SetPending replaces the whole gauge so steps that drained report nothing.
func (m *Metrics) SetPending(counts map[string]int, at time.Time) {
	if m == nil {
		return
	}
	m.pendingByStep.Reset()
	for step, n := range counts {
		m.pendingByStep.WithLabelValues(step).Set(float64(n))
	}
	m.digestLastRun.Set(float64(at.Unix()))
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, statusLabel(code)).Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
