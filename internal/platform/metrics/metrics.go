// Package metrics holds the Prometheus collectors exported on /metrics:
//   - clinic_http_requests_total: counter with method, route and status labels
//   - clinic_http_request_duration_seconds: histogram with method and route labels
//   - clinic_http_requests_in_flight: gauge of concurrent requests
//   - clinic_rate_limiter_buckets: gauge of tracked client buckets
//   - clinic_deliveries_total: counter of delivery attempts by outcome
//   - clinic_medications_low_stock: gauge set by the low-stock scan
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	OutcomeDelivered        = "delivered"
	OutcomeShortage         = "shortage"
	OutcomeAlreadyDelivered = "already_delivered"
	OutcomeNotFound         = "not_found"
	OutcomeInvalid          = "invalid"
	OutcomeError            = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPInFlight       prometheus.Gauge
	RateLimiterBuckets prometheus.Gauge
	Deliveries         *prometheus.CounterVec
	LowStock           prometheus.Gauge
}

// New creates the collectors on a dedicated registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinic_http_requests_in_flight",
			Help: "Current in-flight requests",
		}),
		RateLimiterBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinic_rate_limiter_buckets",
			Help: "Number of client rate limiter buckets",
		}),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_deliveries_total",
				Help: "Prescription delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		LowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinic_medications_low_stock",
			Help: "Medications at or below their alert threshold",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPInFlight,
		m.RateLimiterBuckets,
		m.Deliveries,
		m.LowStock,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDelivery counts one delivery attempt.
func (m *Metrics) ObserveDelivery(outcome string) {
	m.Deliveries.WithLabelValues(outcome).Inc()
}

// SetLowStock records the result of the latest low-stock scan.
func (m *Metrics) SetLowStock(n int) {
	m.LowStock.Set(float64(n))
}
