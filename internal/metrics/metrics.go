// Package metrics holds the registry's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "venue"

// Metrics is the set of collectors the engine updates.
type Metrics struct {
	reg *prometheus.Registry

	intake           *prometheus.CounterVec
	mediaAccepted    *prometheus.CounterVec
	reviews          *prometheus.CounterVec
	promotions       *prometheus.CounterVec
	reads            *prometheus.CounterVec
	retentionDeleted *prometheus.CounterVec
	replayed         *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		intake: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_total",
			Help:      "Intake requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		mediaAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_accepted_total",
			Help:      "Accepted media files by form field",
		}, []string{"field"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_transitions_total",
			Help:      "Review actions by action and result",
		}, []string{"action", "result"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_total",
			Help:      "Promotion attempts by result",
		}, []string{"result"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Place reads by answering source",
		}, []string{"source", "limited"}),
		retentionDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Media objects deleted by the retention sweep",
		}, []string{"kind"}),
		replayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_replayed_total",
			Help:      "Queued intakes replayed into the primary store by result",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Intakes waiting in the degraded-mode queue",
		}),
	}
	m.reg.MustRegister(
		m.intake, m.mediaAccepted, m.reviews, m.promotions,
		m.reads, m.retentionDeleted, m.replayed, m.queueDepth,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Intake counts one intake result.
func (m *Metrics) Intake(kind, outcome string) {
	if m == nil {
		return
	}
	m.intake.WithLabelValues(kind, outcome).Inc()
}

// MediaAccepted adds n accepted files for a form field.
func (m *Metrics) MediaAccepted(field string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mediaAccepted.WithLabelValues(field).Add(float64(n))
}

// Review counts one review action.
func (m *Metrics) Review(action, result string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(action, result).Inc()
}

// Promotion counts one promotion attempt.
func (m *Metrics) Promotion(result string) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(result).Inc()
}

// Read counts one place read.
func (m *Metrics) Read(source string, limited bool) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(source, strconv.FormatBool(limited)).Inc()
}

// RetentionDeleted counts one swept object.
func (m *Metrics) RetentionDeleted(kind string) {
	if m == nil {
		return
	}
	m.retentionDeleted.WithLabelValues(kind).Inc()
}

// Replayed counts one queue replay attempt.
func (m *Metrics) Replayed(result string) {
	if m == nil {
		return
	}
	m.replayed.WithLabelValues(result).Inc()
}

// QueueDepth sets the current queue depth.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
