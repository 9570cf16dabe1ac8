// Package metrics declares the Prometheus instruments of the engine.
//
// Instruments are registered on the default registry through promauto at
// package init, so importing the package is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Embedding sources used as label values.
const (
	SourceCache    = "cache"
	SourceRedis    = "redis"
	SourceProvider = "provider"
	SourceLexical  = "lexical"
	SourceSeeded   = "seeded"
)

var (
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_hub_embedding_requests_total",
			Help: "Embeddings served, by source",
		},
		[]string{"source"},
	)

	EmbeddingProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_hub_embedding_provider_failures_total",
			Help: "Embedding provider failures, by reason",
		},
		[]string{"reason"}, // "error", "timeout", "dimension", "breaker_open"
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_hub_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	VectorIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_hub_vector_index_size",
			Help: "Number of embeddings held by the vector index",
		},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_hub_search_requests_total",
			Help: "Search requests, by retrieval mode",
		},
		[]string{"mode"}, // "vector", "keyword", "empty", "error"
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_hub_search_duration_seconds",
			Help:    "End-to-end search latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_hub_recommendation_items_total",
			Help: "Recommendation candidates produced, by source",
		},
		[]string{"source"},
	)

	RecommendationStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_hub_recommendation_step_failures_total",
			Help: "Recommendation steps that failed and yielded nothing",
		},
		[]string{"source"},
	)

	BehaviorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_hub_behavior_events_total",
			Help: "Behavior events written, by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: "ok", "error"
	)

	TrackerDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_hub_tracker_dropped_total",
			Help: "Behavior events dropped because the async queue was full",
		},
	)

	ExplanationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_hub_explanation_fallbacks_total",
			Help: "Explanations replaced by the template after generator failure",
		},
	)
)
