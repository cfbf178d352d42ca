// Package metrics exposes the client's Prometheus collectors and the small
// HTTP server that serves them while a command runs.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ClientMetrics instruments outgoing requests to the workflow service.
type ClientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewClientMetrics registers the HTTP client collectors on reg.
func NewClientMetrics(reg prometheus.Registerer) (*ClientMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ClientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterctl_http_requests_total",
			Help: "Requests sent to the workflow service, labeled by method and code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rosterctl_http_request_duration_seconds",
			Help:    "Time until response headers from the workflow service, labeled by method.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rosterctl_http_requests_in_flight",
			Help: "Requests to the workflow service awaiting response headers.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register client collector: %w", err)
		}
	}
	return m, nil
}

// InstrumentRoundTripper wraps next so every request is counted and timed.
func (m *ClientMetrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperInFlight(m.inFlight,
		promhttp.InstrumentRoundTripperCounter(m.requests,
			promhttp.InstrumentRoundTripperDuration(m.duration, next)))
}
