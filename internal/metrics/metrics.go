// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_submissions_total",
			Help: "Per-class attendance submissions by outcome",
		},
		[]string{"outcome"},
	)

	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_validation_failures_total",
			Help: "Rejected attendance rows by reconciliation rule",
		},
		[]string{"rule"},
	)

	AbsentStudents = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_absent_students",
			Help:    "Distribution of absent students per saved class summary",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		},
		[]string{"reason"},
	)

	TokenActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "substitute_token_actions_total",
			Help: "Substitute token operations by action and result",
		},
		[]string{"action", "result"},
	)

	StudentActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_actions_total",
			Help: "Bulk roster actions and the number of students they touched",
		},
		[]string{"action"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daily_exports_total",
			Help: "Daily exports by format",
		},
		[]string{"format"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
