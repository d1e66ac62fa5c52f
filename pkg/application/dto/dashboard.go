// Package dto holds the read models returned to presentation clients.
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// ShelterCapacity is a shelter with its derived utilization
type ShelterCapacity struct {
	Shelter       *entities.Shelter `json:"shelter"`
	Utilization   decimal.Decimal   `json:"utilization"`
	AvailableBeds entities.Quantity `json:"available_beds"`
}

// NewShelterCapacity derives the capacity view of a shelter
func NewShelterCapacity(shelter *entities.Shelter) ShelterCapacity {
	return ShelterCapacity{
		Shelter:       shelter,
		Utilization:   shelter.Utilization(),
		AvailableBeds: shelter.AvailableBeds(),
	}
}

// DisasterSummary aggregates the state of one disaster, or of every
// disaster when Disaster is nil.
type DisasterSummary struct {
	Disaster          *entities.Disaster `json:"disaster,omitempty"`
	ShelterCount      int                `json:"shelter_count"`
	TotalCapacity     entities.Quantity  `json:"total_capacity"`
	TotalOccupancy    entities.Quantity  `json:"total_occupancy"`
	Utilization       decimal.Decimal    `json:"utilization"`
	SheltersByStatus  map[string]int     `json:"shelters_by_status"`
	PendingRequests   int                `json:"pending_requests"`
	CriticalResources int                `json:"critical_resources"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// ActionResult is the outcome of an action call
type ActionResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    domainerrors.ErrorCode `json:"code,omitempty"`
	// Retryable is set when re-fetching state and retrying may succeed
	Retryable bool              `json:"retryable,omitempty"`
	Request   *entities.Request `json:"request,omitempty"`
}

// Scenario is a full set of records to import in one transaction
type Scenario struct {
	Disasters []*entities.Disaster
	Shelters  []*entities.Shelter
	Resources []*entities.Resource
	Requests  []*entities.Request
}
