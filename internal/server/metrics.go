package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "researcher_runs_started_total",
		Help: "Workflow runs started via the API or scheduler.",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "researcher_runs_finished_total",
		Help: "Workflow runs finished, by status.",
	}, []string{"status"})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "researcher_run_duration_seconds",
		Help:    "Wall-clock duration of workflow runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
