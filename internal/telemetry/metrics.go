package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "copydesk",
		Name:      "runs_started_total",
		Help:      "Number of pipeline runs started.",
	})

	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "copydesk",
		Name:      "runs_completed_total",
		Help:      "Number of pipeline runs that reached completed.",
	})

	RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copydesk",
		Name:      "runs_failed_total",
		Help:      "Number of pipeline runs that reached a failed or cancelled state.",
	}, []string{"kind"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "copydesk",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of individual stage executions.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage", "outcome"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copydesk",
		Name:      "tool_calls_total",
		Help:      "External tool invocations by capability and outcome.",
	}, []string{"capability", "outcome"})
)
