package agentmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds optional call-count/latency instrumentation for the Agent
// Manager. The Manager never reports these itself; they are counters and
// histograms a host UI can scrape through its own registry.
type Metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers Agent Manager counters/histograms on reg. Passing a
// fresh *prometheus.Registry (rather than the global default) keeps tests
// independent of one another.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrc_agentmgr_invoke_total",
			Help: "Total Agent Manager Invoke calls, labeled by provider/model/outcome.",
		}, []string{"provider_id", "model_id", "ok"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentrc_agentmgr_invoke_seconds",
			Help:    "Agent Manager Invoke call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider_id", "model_id"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.latency)
	}
	return m
}

// ObserveInvoke records the outcome and latency of one Invoke call.
func (m *Metrics) ObserveInvoke(providerID, modelID string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	okLabel := "true"
	if !ok {
		okLabel = "false"
	}
	m.calls.WithLabelValues(providerID, modelID, okLabel).Inc()
	m.latency.WithLabelValues(providerID, modelID).Observe(d.Seconds())
}
