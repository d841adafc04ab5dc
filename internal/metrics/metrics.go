// Package metrics exposes Prometheus counters and gauges for the pipeline.
// Collectors are registered at init time via promauto; callers just record.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksProcessed counts outbox tasks by type and outcome
	// (completed, failed, retried).
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "personakit",
		Subsystem: "outbox",
		Name:      "tasks_processed_total",
		Help:      "Outbox tasks processed, by task type and outcome.",
	}, []string{"task_type", "outcome"})

	// TasksPending tracks the current pending backlog.
	TasksPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "personakit",
		Subsystem: "outbox",
		Name:      "tasks_pending",
		Help:      "Outbox tasks currently pending.",
	})

	// MindscapeConflicts counts optimistic-lock retries on trait updates.
	MindscapeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "personakit",
		Subsystem: "mindscape",
		Name:      "version_conflicts_total",
		Help:      "Mindscape compare-and-swap conflicts that triggered a retry.",
	})

	// PersonasGenerated counts generated personas by mapper.
	PersonasGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "personakit",
		Subsystem: "persona",
		Name:      "generated_total",
		Help:      "Personas generated, by mapper.",
	}, []string{"mapper_id"})

	// WeightAdjustments counts rule weight changes by direction.
	WeightAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "personakit",
		Subsystem: "feedback",
		Name:      "weight_adjustments_total",
		Help:      "Rule weight adjustments applied, by direction.",
	}, []string{"direction"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
