package recommendation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/relief/pkg/domain/entities"
)

var hundred = decimal.NewFromInt(100)

// Score is an urgency score broken down by component
type Score struct {
	Priority    decimal.Decimal
	Utilization decimal.Decimal
	Critical    decimal.Decimal
	Stockout    decimal.Decimal
}

// Total sums the components
func (s Score) Total() decimal.Decimal {
	return s.Priority.Add(s.Utilization).Add(s.Critical).Add(s.Stockout)
}

// ScoreRequest computes the urgency of one request. Each component is a
// non-negative weight times a quantity that only grows with priority,
// utilization or scarcity, so the total is monotone in all three.
func ScoreRequest(view entities.RequestView, weights entities.UrgencyWeights) Score {
	score := Score{
		Priority:    weights.Priority.Mul(decimal.NewFromInt(int64(view.Request.Priority))),
		Utilization: decimal.Zero,
		Critical:    decimal.Zero,
		Stockout:    decimal.Zero,
	}

	if view.Resource.Type == entities.Occupancy && view.Shelter != nil {
		score.Utilization = weights.Utilization.Mul(view.Shelter.Utilization())
	}
	if view.Resource.IsCritical() {
		score.Critical = weights.Critical
	}
	if view.Resource.StockLevel <= 0 {
		score.Stockout = weights.Stockout
	}
	return score
}

// explain renders the score and the allocation outcome for operators
func explain(view entities.RequestView, score Score, recommended, outstanding entities.Quantity) string {
	parts := []string{fmt.Sprintf("priority %s", view.Request.Priority)}

	if score.Utilization.IsPositive() {
		pct := view.Shelter.Utilization().Mul(hundred).Round(0)
		parts = append(parts, fmt.Sprintf("shelter %s%% utilized", pct))
	}
	if score.Stockout.IsPositive() {
		parts = append(parts, "resource out of stock")
	} else if score.Critical.IsPositive() {
		parts = append(parts, "resource at or below minimum")
	}

	switch {
	case recommended == 0:
		parts = append(parts, "no stock left after higher-urgency requests")
	case recommended < outstanding:
		parts = append(parts, fmt.Sprintf("partial: %d of %d", recommended, outstanding))
	default:
		parts = append(parts, "fully covered")
	}
	return strings.Join(parts, "; ")
}
