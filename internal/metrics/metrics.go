package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle metrics
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchd_sessions_started_total",
			Help: "Total number of research sessions started",
		},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchd_sessions_completed_total",
			Help: "Total number of research sessions reaching a terminal state",
		},
		[]string{"status"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "researchd_session_duration_seconds",
			Help:    "Research session execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	ResearchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchd_research_retries_total",
			Help: "Total number of retried research attempts",
		},
	)

	// Engine metrics
	ResearchEngineCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchd_engine_calls_total",
			Help: "Total number of research engine invocations",
		},
		[]string{"status"},
	)

	// Token and cost metrics
	SessionTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "researchd_session_tokens_used",
			Help:    "Number of tokens used per research session",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		},
	)

	SessionCostUSD = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "researchd_session_cost_usd",
			Help:    "Estimated cost in USD per research session",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
		},
	)

	PricingFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchd_pricing_fallbacks_total",
			Help: "Cost calculations that fell back to the zero rate",
		},
		[]string{"reason"},
	)

	// Document processing metrics
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchd_documents_processed_total",
			Help: "Total number of uploaded documents processed",
		},
		[]string{"file_type", "status"},
	)

	SummarizationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchd_summarization_fallbacks_total",
			Help: "Document summaries that degraded to a truncated extract",
		},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchd_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"endpoint", "code"},
	)

	// Status cache metrics
	StatusCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchd_status_cache_requests_total",
			Help: "Session status cache lookups",
		},
		[]string{"result"},
	)
)
