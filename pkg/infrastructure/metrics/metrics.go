// Package metrics exposes Prometheus collectors for allocation activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relief"

// Execution outcomes
const (
	OutcomeFulfilled       = "fulfilled"
	OutcomePartial         = "partial"
	OutcomeRejected        = "rejected"
	OutcomeStockConflict   = "stock_conflict"
	OutcomeAlreadyTerminal = "already_terminal"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

// Recorder records allocation metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	executions         *prometheus.CounterVec
	allocatedUnits     *prometheus.CounterVec
	recommendations    prometheus.Counter
	unserviceable      prometheus.Counter
	generationDuration prometheus.Histogram
	recomputes         prometheus.Counter
	recomputeFailures  prometheus.Counter
	events             *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Allocation executions and rejections by outcome.",
		}, []string{"outcome"}),
		allocatedUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocated_units_total",
			Help:      "Units drawn from stock by resource type.",
		}, []string{"resource_type"}),
		recommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations emitted by the engine.",
		}),
		unserviceable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_unserviceable_total",
			Help:      "Recommendations emitted with a zero quantity.",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_generation_seconds",
			Help:      "Time spent generating a recommendation plan.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_recomputes_total",
			Help:      "Shelters whose capacity was recomputed.",
		}),
		recomputeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_recompute_failures_total",
			Help:      "Capacity recompute batches that failed to persist.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Lifecycle events appended to the event log by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		r.executions,
		r.allocatedUnits,
		r.recommendations,
		r.unserviceable,
		r.generationDuration,
		r.recomputes,
		r.recomputeFailures,
		r.events,
	)
	return r
}

// ObserveExecution counts an executor outcome
func (r *Recorder) ObserveExecution(outcome string) {
	if r == nil {
		return
	}
	r.executions.WithLabelValues(outcome).Inc()
}

// ObserveAllocated counts units drawn from stock
func (r *Recorder) ObserveAllocated(resourceType string, units int64) {
	if r == nil {
		return
	}
	r.allocatedUnits.WithLabelValues(resourceType).Add(float64(units))
}

// ObserveGeneration records one engine run
func (r *Recorder) ObserveGeneration(total, unserviceable int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.recommendations.Add(float64(total))
	r.unserviceable.Add(float64(unserviceable))
	r.generationDuration.Observe(elapsed.Seconds())
}

// ObserveRecompute records a capacity recompute batch
func (r *Recorder) ObserveRecompute(shelters int, failed bool) {
	if r == nil {
		return
	}
	if failed {
		r.recomputeFailures.Inc()
		return
	}
	r.recomputes.Add(float64(shelters))
}

// ObserveEvent counts an appended lifecycle event
func (r *Recorder) ObserveEvent(eventType string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(eventType).Inc()
}
