// Package metrics exposes Prometheus instrumentation for the assistant.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks turns, provider attempts and context aggregation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Turns               *prometheus.CounterVec
	TurnDuration        *prometheus.HistogramVec
	ProviderAttempts    *prometheus.CounterVec
	ProviderDuration    *prometheus.HistogramVec
	DomainFetchFailures *prometheus.CounterVec
	Completeness        prometheus.Histogram
	PersistenceFailures prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vital_assistant_turns_total",
			Help: "Assistant turns by persona and path (fast, full, fallback)",
		}, []string{"persona", "path"}),
		TurnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vital_assistant_turn_duration_seconds",
			Help:    "End-to-end duration of an assistant turn",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"path"}),
		ProviderAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vital_provider_attempts_total",
			Help: "Generation provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vital_provider_attempt_duration_seconds",
			Help:    "Duration of generation provider attempts",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"provider"}),
		DomainFetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vital_domain_fetch_failures_total",
			Help: "Failed user-history domain fetches",
		}, []string{"domain"}),
		Completeness: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vital_context_completeness_percent",
			Help:    "Completeness percentage of aggregated user contexts",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vital_conversation_persistence_failures_total",
			Help: "Conversation turns that could not be recorded",
		}),
	}
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(persona, path string, start time.Time) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(persona, path).Inc()
	m.TurnDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// ObserveAttempt records one provider attempt. outcome is "success" or a failure kind.
func (m *Metrics) ObserveAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// IncDomainFetchFailure records a failed domain fetch.
func (m *Metrics) IncDomainFetchFailure(domain string) {
	if m == nil {
		return
	}
	m.DomainFetchFailures.WithLabelValues(domain).Inc()
}

// ObserveCompleteness records the completeness of an aggregated context.
func (m *Metrics) ObserveCompleteness(pct int) {
	if m == nil {
		return
	}
	m.Completeness.Observe(float64(pct))
}

// IncPersistenceFailure records a turn that was not persisted.
func (m *Metrics) IncPersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}
