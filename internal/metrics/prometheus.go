// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusLocked  = "locked"
)

// Prometheus metrics for the trophy engine.
var (
	// Counters.
	TrophiesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trophies_awarded_total",
			Help: "Total number of trophies awarded",
		},
		[]string{"trophy"},
	)

	AssignmentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trophy_assignment_runs_total",
			Help: "Total trophy assignment runs",
		},
		[]string{"status"},
	)

	AssignmentCapReachedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trophy_assignment_cap_reached_total",
			Help: "Total assignment runs that stopped at the award cap",
		},
	)

	NotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trophy_notifications_failed_total",
			Help: "Total failed run summary notifications",
		},
		[]string{"reason"},
	)

	// Gauges.
	TrophyHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trophy_holders",
			Help: "Current number of users holding each trophy",
		},
		[]string{"trophy"},
	)

	OutstandingAssignments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trophy_outstanding_assignments",
			Help: "Number of awards the next uncapped assignment run would make",
		},
	)

	AssignmentLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trophy_assignment_last_run_timestamp",
			Help: "Unix timestamp of the last assignment run",
		},
	)

	// Histograms.
	AssignmentDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trophy_assignment_duration_seconds",
			Help:    "Time taken to execute a trophy assignment run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
	)
)

// RecordTrophyAwarded records a trophy award event.
func RecordTrophyAwarded(trophy string) {
	TrophiesAwardedTotal.WithLabelValues(trophy).Inc()
}

// SetTrophyHolders sets the number of holders for a trophy.
func SetTrophyHolders(trophy string, count int) {
	TrophyHolders.WithLabelValues(trophy).Set(float64(count))
}

// RecordAssignmentRun records an assignment run with its outcome.
func RecordAssignmentRun(status string) {
	AssignmentRunsTotal.WithLabelValues(status).Inc()
}

// RecordAssignmentCapReached records a run that hit the award cap.
func RecordAssignmentCapReached() {
	AssignmentCapReachedTotal.Inc()
}

// RecordNotificationFailed records a failed notification attempt.
func RecordNotificationFailed(reason string) {
	NotificationsFailedTotal.WithLabelValues(reason).Inc()
}

// SetOutstandingAssignments sets the outstanding assignment gauge.
func SetOutstandingAssignments(count int64) {
	OutstandingAssignments.Set(float64(count))
}

// SetAssignmentLastRun sets the timestamp of the last assignment run.
func SetAssignmentLastRun() {
	AssignmentLastRunTimestamp.SetToCurrentTime()
}

// ObserveAssignmentDuration observes the duration of an assignment run.
func ObserveAssignmentDuration(seconds float64) {
	AssignmentDurationSeconds.Observe(seconds)
}
