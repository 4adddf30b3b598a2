// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	SearchCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_search_cache_total",
			Help: "Search cache lookups by result (hit, miss, expired)",
		},
		[]string{"result"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_search_requests_total",
			Help: "External search calls by domain, depth and status",
		},
		[]string{"domain", "depth", "status"},
	)

	LLMCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_llm_cost_usd_total",
			Help: "Accumulated completion and search cost in USD per stage",
		},
		[]string{"stage"},
	)

	SpecialistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_specialist_failures_total",
			Help: "Specialist answers returned with an error",
		},
		[]string{"domain"},
	)

	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_route_decisions_total",
			Help: "Routing outcomes (single, multi, out_of_scope, error)",
		},
		[]string{"outcome"},
	)
)
