// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "url_shortener"

// Metrics groups the collectors used by the HTTP layer and the use case.
type Metrics struct {
	// HTTP
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	// Business
	URLsShortened    prometheus.Counter
	URLsModified     prometheus.Counter
	URLsDeactivated  prometheus.Counter
	StatsRequested   prometheus.Counter
	CodeCollisions   prometheus.Counter
	RetriesExhausted prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route", "status"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		URLsShortened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_shortened_total",
			Help:      "Total number of URLs shortened.",
		}),
		URLsModified: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_modified_total",
			Help:      "Total number of URL modifications.",
		}),
		URLsDeactivated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_deactivated_total",
			Help:      "Total number of URLs deleted.",
		}),
		StatsRequested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_requests_total",
			Help:      "Total number of statistics reads, each counted as an access.",
		}),
		CodeCollisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_code_collisions_total",
			Help:      "Total number of generated short codes that were already taken.",
		}),
		RetriesExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_code_retries_exhausted_total",
			Help:      "Total number of shorten requests that ran out of generation attempts.",
		}),
	}
}
