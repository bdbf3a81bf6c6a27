package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inference metrics
	InferenceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_inference_requests_total",
			Help: "Total number of inference service requests",
		},
		[]string{"provider", "model", "status"},
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nae_inference_request_duration_seconds",
			Help:    "Inference request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2min
		},
		[]string{"provider", "model"},
	)

	InferenceTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_inference_tokens_total",
			Help: "Total number of tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: input/output
	)

	InferenceCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_inference_cost_usd_total",
			Help: "Estimated inference cost in USD",
		},
		[]string{"provider", "model"},
	)

	RateLimitedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_rate_limited_requests_total",
			Help: "Inference requests that had to wait for the client-side rate limiter",
		},
		[]string{"provider", "model"},
	)

	RateLimitWaitSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_rate_limit_wait_seconds_total",
			Help: "Time inference requests spent blocked by the client-side rate limiter",
		},
		[]string{"provider", "model"},
	)

	// Pipeline outcomes by operation (ingest, analyze, ask) and result
	// (ok, ingestion_failure, inference_failure, schema_violation).
	PipelineOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_pipeline_outcomes_total",
			Help: "Outcomes of pipeline operations",
		},
		[]string{"operation", "result"},
	)

	SchemaViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_schema_violations_total",
			Help: "Analysis responses rejected by schema validation, by top-level group",
		},
		[]string{"group"},
	)

	// History metrics
	HistoryRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nae_history_records",
			Help: "Number of records currently held in history",
		},
	)

	HistoryEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nae_history_evictions_total",
			Help: "Records dropped from history by the capacity limit",
		},
	)

	StaleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nae_stale_responses_total",
			Help: "Responses discarded because a newer request was issued",
		},
		[]string{"operation"},
	)
)
