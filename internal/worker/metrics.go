package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fable_worker_jobs_total",
		Help: "Processed jobs by type and outcome.",
	}, []string{"job_type", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fable_worker_job_duration_seconds",
		Help:    "Job handling duration by type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job_type"})

	claimMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fable_worker_claim_misses_total",
		Help: "Queue messages whose job was already taken or not pending.",
	})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fable_worker_jobs_in_flight",
		Help: "Handlers currently running.",
	})

	reconciledJobs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fable_worker_reconciled_jobs_total",
		Help: "Stale pending jobs re-published to the queue.",
	})
)
