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

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_pipeline_runs_total",
			Help: "Prompt-to-filter runs by mode and terminal status",
		},
		[]string{"mode", "status"},
	)

	PipelineStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_pipeline_stage_total",
			Help: "Pipeline state transitions",
		},
		[]string{"stage"},
	)

	LLMAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_attempts_total",
			Help: "Chat-completion attempts by call site and outcome",
		},
		[]string{"call_site", "outcome"},
	)

	PIITokensDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pii_tokens_detected_total",
			Help: "PII spans flagged in prompts, by detector",
		},
		[]string{"kind"},
	)

	ResolverCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolver_candidates",
			Help:    "Datastore candidates found per reference",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		},
		[]string{"category"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "code"},
	)
)
