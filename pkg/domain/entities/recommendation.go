package entities

import (
	"github.com/shopspring/decimal"

	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// RequestView is a request joined with the shelter and resource it references
type RequestView struct {
	Request  *Request  `json:"request"`
	Shelter  *Shelter  `json:"shelter,omitempty"`
	Resource *Resource `json:"resource,omitempty"`
}

// PriorityVariant is a display hint for how prominently to show a recommendation
type PriorityVariant string

const (
	VariantCritical PriorityVariant = "critical"
	VariantWarning  PriorityVariant = "warning"
	VariantInfo     PriorityVariant = "info"
	VariantNeutral  PriorityVariant = "neutral"
)

// VariantFor derives the display variant from a request's priority
func VariantFor(p Priority) PriorityVariant {
	switch {
	case p >= PriorityCritical:
		return VariantCritical
	case p >= PriorityUrgent:
		return VariantWarning
	case p >= PriorityHigh:
		return VariantInfo
	default:
		return VariantNeutral
	}
}

// Recommendation is a suggested allocation for one open request. It is
// recomputed on every call and never stored.
type Recommendation struct {
	RequestView
	RecommendedQuantity Quantity `json:"recommended_quantity"`
	// Shortfall is the outstanding quantity the recommendation could not cover.
	Shortfall    Quantity        `json:"shortfall"`
	UrgencyScore decimal.Decimal `json:"urgency_score"`
	Variant      PriorityVariant `json:"variant"`
	Reason       string          `json:"reason"`
}

// Serviceable reports whether any stock was recommended
func (r *Recommendation) Serviceable() bool {
	return r.RecommendedQuantity > 0
}

// UrgencyWeights are the tunable coefficients of the urgency score. All
// weights must be non-negative so the score never decreases when priority,
// shelter utilization or resource scarcity increases.
type UrgencyWeights struct {
	// Priority multiplies the 1..5 priority level.
	Priority decimal.Decimal
	// Utilization multiplies shelter utilization for Occupancy requests.
	Utilization decimal.Decimal
	// Critical is added when the resource is at or below its threshold.
	Critical decimal.Decimal
	// Stockout is added when the resource has no stock at all.
	Stockout decimal.Decimal
}

// DefaultUrgencyWeights lets priority dominate, with utilization and
// scarcity able to lift a request by at most about one priority level.
func DefaultUrgencyWeights() UrgencyWeights {
	return UrgencyWeights{
		Priority:    decimal.NewFromInt(10),
		Utilization: decimal.NewFromInt(5),
		Critical:    decimal.NewFromInt(3),
		Stockout:    decimal.NewFromInt(2),
	}
}

// Validate rejects negative weights
func (w UrgencyWeights) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"priority":    w.Priority,
		"utilization": w.Utilization,
		"critical":    w.Critical,
		"stockout":    w.Stockout,
	} {
		if v.IsNegative() {
			return domainerrors.Validation("%s weight cannot be negative, got %s", name, v)
		}
	}
	return nil
}
