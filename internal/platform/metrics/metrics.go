// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts requests by route template, method and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxycare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oxycare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// StatusTransitionsTotal counts applied intervention status changes.
	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxycare_intervention_status_transitions_total",
			Help: "Total number of intervention status transitions",
		},
		[]string{"from", "to"},
	)

	// ValidationFailuresTotal counts rejected writes by violation code.
	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxycare_validation_failures_total",
			Help: "Total number of field violations returned on intervention writes",
		},
		[]string{"code"},
	)

	ReportsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxycare_reports_generated_total",
			Help: "Total number of intervention reports generated",
		},
		[]string{"result"}, // "ok" or "error"
	)

	DirectoryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxycare_directory_cache_total",
			Help: "Directory lookup cache hits and misses",
		},
		[]string{"kind", "result"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxycare_events_published_total",
			Help: "Total number of domain events handed to the broker",
		},
		[]string{"type", "result"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			StatusTransitionsTotal,
			ValidationFailuresTotal,
			ReportsGeneratedTotal,
			DirectoryCacheTotal,
			EventsPublishedTotal,
		)
	})
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
