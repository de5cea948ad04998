package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_turns_total",
			Help: "Total submitted turns by classified intent",
		},
		[]string{"intent"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: []float64{.01, .1, .5, 1, 2, 4, 6, 8, 10, 15, 30},
		},
		[]string{"stage", "outcome"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_stage_failures_total",
			Help: "Pipeline stage failures",
		},
		[]string{"stage", "outcome"},
	)

	// Presentation metrics
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studio_event_subscribers",
			Help: "Open log event subscriptions",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_events_dropped_total",
			Help: "Log events dropped for slow subscribers",
		},
	)
)
