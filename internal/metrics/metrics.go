package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	logins   *prometheus.CounterVec
	gate     *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

// New registers the portal metrics on reg. A nil reg yields a no-op set.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medsync_login_attempts_total",
		Help: "Login attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	gate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medsync_gate_decisions_total",
		Help: "Session gate decisions by required role and outcome.",
	}, []string{"role", "outcome"})
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medsync_upstream_request_duration_seconds",
		Help:    "Latency of calls to the MedSync API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})
	reg.MustRegister(logins, gate, upstream)
	return &Metrics{logins: logins, gate: gate, upstream: upstream}
}

func (m *Metrics) LoginAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) GateDecision(role, outcome string) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(normalizeLabel(role), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveUpstream(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(status)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
