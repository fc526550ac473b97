package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful queries and calls.
	OutcomeSuccess = "success"
	// OutcomeError labels failed queries (pipeline or dependency issues).
	OutcomeError = "error"
	// OutcomeRejected labels requests refused before any work was done.
	OutcomeRejected = "rejected"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vizchat",
			Name:      "queries_total",
			Help:      "Total number of prompts handled, partitioned by outcome and visualization.",
		},
		[]string{"outcome", "visualization"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vizchat",
			Name:      "query_seconds",
			Help:      "End-to-end prompt latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		},
	)

	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vizchat",
			Name:      "llm_requests_total",
			Help:      "LLM completion attempts, partitioned by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	llmDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vizchat",
			Name:      "llm_request_seconds",
			Help:      "LLM completion latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)

	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vizchat",
			Name:      "result_rows",
			Help:      "Rows returned by generated SQL.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vizchat",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups partitioned by cached kind and hit/miss.",
		},
		[]string{"kind", "result"},
	)
)

// Register attaches vizchat collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		queriesTotal,
		queryDurationSeconds,
		llmRequestsTotal,
		llmDurationSeconds,
		resultRows,
		cacheLookupsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveQuery records a prompt duration, outcome and visualization label.
func ObserveQuery(duration time.Duration, outcome, visualization string) {
	switch outcome {
	case OutcomeError, OutcomeRejected:
	default:
		outcome = OutcomeSuccess
	}
	if visualization == "" {
		visualization = "none"
	}
	queriesTotal.WithLabelValues(outcome, visualization).Inc()
	if duration < 0 {
		duration = 0
	}
	queryDurationSeconds.Observe(duration.Seconds())
}

// ObserveLLMCall records a single completion attempt against a provider.
func ObserveLLMCall(provider string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
	llmDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveRows records the size of a result set.
func ObserveRows(n int) {
	resultRows.Observe(float64(n))
}

// ObserveCacheLookup records a cache hit or miss for the given kind.
func ObserveCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}
