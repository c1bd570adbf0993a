package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's prometheus collectors.
type Metrics struct {
	generations   *prometheus.CounterVec
	compilations  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	attempts      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proteus",
			Name:      "generations_total",
			Help:      "Pipeline runs by provider and outcome code.",
		}, []string{"provider", "outcome"}),
		compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proteus",
			Name:      "compilations_total",
			Help:      "Compilation attempts by dialect and terminal state.",
		}, []string{"dialect", "state"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "proteus",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proteus",
			Name:      "provider_attempts_total",
			Help:      "Provider calls by provider and result code.",
		}, []string{"provider", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.generations, m.compilations, m.stageDuration, m.attempts)
	}
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) generation(provider, outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) compilation(dialect, state string) {
	if m == nil {
		return
	}
	m.compilations.WithLabelValues(dialect, state).Inc()
}

func (m *Metrics) attempt(provider, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, result).Inc()
}
