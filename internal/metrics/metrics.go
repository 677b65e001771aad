// Package metrics exposes the orchestrator's Prometheus instrumentation,
// one of the supplemented features listed in SPEC_FULL.md §4.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueDepth is the number of sessions currently in processing_status=pending.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessionwave",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Number of sessions waiting to be claimed by the worker pool.",
	})

	// ActiveWorkers is the number of workers currently processing a session.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessionwave",
		Subsystem: "queue",
		Name:      "active_workers",
		Help:      "Number of worker goroutines currently processing a session.",
	})

	// TaskAttemptsTotal counts every processing_log_entries row written, by
	// wave and terminal status.
	TaskAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionwave",
		Subsystem: "tasks",
		Name:      "attempts_total",
		Help:      "Task generator attempts, labeled by wave and outcome.",
	}, []string{"wave", "status"})

	// TaskRetriesTotal counts retries issued by the wave scheduler's backoff loop.
	TaskRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionwave",
		Subsystem: "tasks",
		Name:      "retries_total",
		Help:      "Retry attempts issued after a retryable task failure, labeled by wave.",
	}, []string{"wave"})

	// GenerationCostUSD sums generation_cost_entries.cost_usd, labeled by task.
	GenerationCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionwave",
		Subsystem: "generation",
		Name:      "cost_usd_total",
		Help:      "Cumulative remote completion cost in USD, labeled by task.",
	}, []string{"task"})

	// Wave3RegenerationsTotal counts completed Journey/Bridge regenerations.
	Wave3RegenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionwave",
		Subsystem: "wave3",
		Name:      "regenerations_total",
		Help:      "Completed Wave-3 regenerations, labeled by document (journey|bridge) and outcome.",
	}, []string{"document", "outcome"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
