// Package metrics defines the process-wide prometheus collectors.
// Importing it registers everything with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkforge_runs_started_total",
			Help: "Total number of article runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_runs_completed_total",
			Help: "Total number of article runs completed",
		},
		[]string{"status"},
	)

	RunIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkforge_run_iterations",
			Help:    "Write-validate iterations consumed per run",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// Task metrics
	TaskExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_task_executions_total",
			Help: "Generation task executions by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkforge_task_duration_seconds",
			Help:    "Generation task duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	TaskTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkforge_task_tokens",
			Help:    "Tokens consumed per generation task",
			Buckets: []float64{50, 100, 500, 1000, 2500, 5000, 10000, 25000},
		},
		[]string{"role"},
	)

	TaskCostUSD = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkforge_task_cost_usd",
			Help:    "Cost in USD per generation task",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"role"},
	)

	// Verification metrics
	ClaimsExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkforge_claims_extracted",
			Help:    "Claims extracted per draft",
			Buckets: []float64{0, 5, 10, 20, 40, 80},
		},
	)

	ClaimVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_claim_verdicts_total",
			Help: "Claim verification verdicts by method",
		},
		[]string{"verdict", "method"},
	)

	ValidationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_validation_outcomes_total",
			Help: "Validation gate outcomes",
		},
		[]string{"outcome"},
	)

	// Source fetch metrics
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_source_fetches_total",
			Help: "Source fetch attempts by result",
		},
		[]string{"result"},
	)

	// Knowledge cache metrics
	KnowledgeCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_knowledge_cache_total",
			Help: "Knowledge search cache lookups by result",
		},
		[]string{"result"},
	)

	// Pool metrics
	PoolInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inkforge_pool_in_flight",
			Help: "In-flight calls per resource pool",
		},
		[]string{"pool"},
	)

	PoolWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_pool_waits_total",
			Help: "Acquisitions that had to wait for a pool slot",
		},
		[]string{"pool"},
	)
)
