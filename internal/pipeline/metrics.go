package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videod",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Total jobs by terminal outcome",
		},
		[]string{"outcome"},
	)

	jobFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videod",
			Subsystem: "pipeline",
			Name:      "job_failures_total",
			Help:      "Failed jobs by error kind",
		},
		[]string{"kind"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "videod",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "End-to-end duration of completed jobs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "videod",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, jobFailures, jobDuration, stageDuration)
}
