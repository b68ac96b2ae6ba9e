package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func TestMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LoginAttempt("remote", "success")
	m.LoginAttempt("remote", "success")
	m.LoginAttempt("demo", "")
	m.GateDecision("doctor", "deny")
	m.ObserveUpstream("login", "200", 40*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, counterValue(t, mfs, "medsync_login_attempts_total", map[string]string{"provider": "remote", "outcome": "success"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "medsync_login_attempts_total", map[string]string{"provider": "demo", "outcome": "unknown"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "medsync_gate_decisions_total", map[string]string{"role": "doctor", "outcome": "deny"}))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoginAttempt("remote", "success")
		m.GateDecision("doctor", "allow")
		m.ObserveUpstream("login", "200", time.Second)
	})
	assert.Nil(t, New(nil))
}
