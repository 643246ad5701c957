package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Jobs finished, by delivery mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "dispatch",
			Name:      "job_duration_seconds",
			Help:      "Worker execution time per job",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	asyncPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "dispatch",
			Name:      "async_pending",
			Help:      "Asynchronous jobs not yet finished",
		},
	)

	streamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "dispatch",
			Name:      "stream_dropped_total",
			Help:      "Progress events dropped because a stream consumer fell behind",
		},
	)

	webhookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "dispatch",
			Name:      "webhook_total",
			Help:      "Webhook delivery attempts, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, jobDuration, asyncPending, streamDropped, webhookTotal)
}
