package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "caption_rater"

// Metrics holds Prometheus metrics for rating sessions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	VotesTotal      *prometheus.CounterVec
	UndosTotal      *prometheus.CounterVec
	PersistDuration *prometheus.HistogramVec
	SessionsLoaded  *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

// New creates and registers rating metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of vote attempts, by result.",
		}, []string{"result"}),
		UndosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undos_total",
			Help:      "Total number of undo attempts, by result.",
		}, []string{"result"}),
		PersistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vote_persist_duration_seconds",
			Help:      "Duration of votes store writes in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"op"}),
		SessionsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_loaded_total",
			Help:      "Total number of rating session loads, by result.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of rating sessions held in memory.",
		}),
	}

	reg.MustRegister(m.VotesTotal, m.UndosTotal, m.PersistDuration, m.SessionsLoaded, m.ActiveSessions)
	return m
}

func (m *Metrics) Vote(result string) {
	if m == nil {
		return
	}
	m.VotesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Undo(result string) {
	if m == nil {
		return
	}
	m.UndosTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Persist(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.PersistDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) SessionLoaded(result string) {
	if m == nil {
		return
	}
	m.SessionsLoaded.WithLabelValues(result).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
