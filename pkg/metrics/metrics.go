package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Assignments records assignment attempts by result (assigned|already_assigned|failed).
	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cabinet_assignments_total",
			Help: "Total number of screenshot-to-folder assignment attempts",
		},
		[]string{"result"},
	)

	// ActivitySessions counts ephemeral activity sessions by outcome
	// (saved|timeout|failed|start_failed).
	ActivitySessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cabinet_activity_sessions_total",
			Help: "Total number of activity sessions by final outcome",
		},
		[]string{"outcome"},
	)

	// UnassignedScreenshots tracks the size of the unassigned-recent view.
	UnassignedScreenshots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cabinet_unassigned_screenshots",
			Help: "Number of recent screenshots not yet filed into a folder",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cabinet_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
