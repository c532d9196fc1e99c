// Package metrics provides the optional prometheus collectors this module
// exposes alongside the protocol layer. Metrics are an ambient
// observability concern, independent of which cluster operations a caller
// happens to use, so they live in their own package next to the protocol
// code rather than folded into it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors holds the counters and histograms this module reports. A nil
// *Collectors is valid everywhere it's used: every recording method is a
// no-op on a nil receiver, so metrics stay entirely optional.
type Collectors struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	membersEnabled   prometheus.Gauge
}

// New builds a Collectors and registers it with reg. Pass a
// prometheus.NewRegistry() (or prometheus.DefaultRegisterer) from the
// caller; pass nil to disable metrics entirely.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		return nil
	}
	c := &Collectors{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridclient_requests_total",
			Help: "Total cluster requests by message type and outcome.",
		}, []string{"message_type", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridclient_request_duration_seconds",
			Help:    "Round-trip latency of cluster requests by message type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"message_type"}),
		membersEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridclient_members_enabled",
			Help: "Current count of enabled cluster members.",
		}),
	}
	reg.MustRegister(c.requestsTotal, c.requestDuration, c.membersEnabled)
	return c
}

func (c *Collectors) ObserveRequest(messageType string, outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(messageType, outcome).Inc()
	c.requestDuration.WithLabelValues(messageType).Observe(seconds)
}

func (c *Collectors) SetMembersEnabled(n int) {
	if c == nil {
		return
	}
	c.membersEnabled.Set(float64(n))
}
