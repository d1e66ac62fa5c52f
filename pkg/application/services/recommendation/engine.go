// Package recommendation ranks open requests and proposes how much of each
// can be served from current stock.
//
// The plan is a single greedy pass over requests sorted by urgency. It runs
// against a snapshot, reserves nothing and is superseded by the next call;
// the allocation executor re-checks stock when a recommendation is applied.
package recommendation

import (
	"context"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"

	"github.com/vsinha/relief/pkg/application/services/queue"
	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/metrics"
)

// Config holds the engine's dependencies
type Config struct {
	Weights entities.UrgencyWeights
	Logger  logr.Logger
	Metrics *metrics.Recorder
}

// Engine generates recommendation plans
type Engine struct {
	queue   *queue.Queue
	weights entities.UrgencyWeights
	logger  logr.Logger
	metrics *metrics.Recorder
}

// NewEngine creates an engine reading from store
func NewEngine(store repositories.Reader, cfg Config) *Engine {
	return &Engine{
		queue:   queue.NewQueue(store),
		weights: cfg.Weights,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Weights returns the urgency weights in use
func (e *Engine) Weights() entities.UrgencyWeights {
	return e.weights
}

// Generate returns one recommendation per open request in scope, most
// urgent first. Requests that cannot be served are included with a zero
// recommended quantity.
func (e *Engine) Generate(ctx context.Context, scope entities.Scope) ([]entities.Recommendation, error) {
	start := time.Now()

	views, err := e.queue.ListPending(ctx, scope)
	if err != nil {
		return nil, err
	}

	recommendations, allocations := Plan(views, e.weights)

	unserviceable := 0
	for i := range recommendations {
		if !recommendations[i].Serviceable() {
			unserviceable++
		}
	}
	elapsed := time.Since(start)
	e.metrics.ObserveGeneration(len(recommendations), unserviceable, elapsed)

	e.logger.V(logging.DEBUG).Info("Generated recommendations",
		"scope", scope.DisasterID,
		"requests", len(recommendations),
		"unserviceable", unserviceable,
		"coverage", allocations.GetCoverageRatio(),
		"elapsed", elapsed)
	e.logger.V(logging.TRACE).Info("Allocation detail", "allocations", allocations.String())

	return recommendations, nil
}

// Plan scores, sorts and greedily allocates the given requests. Stock is
// taken from each view's resource as the snapshot; views sharing a
// resource draw from one counter.
func Plan(views []entities.RequestView, weights entities.UrgencyWeights) ([]entities.Recommendation, AllocationMap) {
	type scored struct {
		view  entities.RequestView
		score Score
		total decimal.Decimal
	}

	ranked := make([]scored, 0, len(views))
	for _, v := range views {
		s := ScoreRequest(v, weights)
		ranked = append(ranked, scored{view: v, score: s, total: s.Total()})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].total.Cmp(ranked[j].total); c != 0 {
			return c > 0
		}
		a, b := ranked[i].view.Request, ranked[j].view.Request
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.ID < b.ID
	})

	allocations := NewAllocationMap()
	for _, r := range ranked {
		allocations.Track(r.view.Resource)
	}

	recommendations := make([]entities.Recommendation, 0, len(ranked))
	for _, r := range ranked {
		outstanding := r.view.Request.Outstanding()
		recommended := allocations.Take(r.view.Resource.ID, outstanding)

		recommendations = append(recommendations, entities.Recommendation{
			RequestView:         r.view,
			RecommendedQuantity: recommended,
			Shortfall:           outstanding - recommended,
			UrgencyScore:        r.total,
			Variant:             entities.VariantFor(r.view.Request.Priority),
			Reason:              explain(r.view, r.score, recommended, outstanding),
		})
	}
	return recommendations, allocations
}
