package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// ShelterID identifies a shelter site
type ShelterID string

// OperationalStatus represents how close a shelter is to its capacity
type OperationalStatus int

const (
	ShelterAvailable OperationalStatus = iota
	ShelterNearCapacity
	ShelterAtCapacity
	ShelterClosed
)

// String method for OperationalStatus enum
func (s OperationalStatus) String() string {
	switch s {
	case ShelterAvailable:
		return "Available"
	case ShelterNearCapacity:
		return "Near Capacity"
	case ShelterAtCapacity:
		return "At Capacity"
	case ShelterClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name
func (s OperationalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *OperationalStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationalStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOperationalStatus parses the name produced by String
func ParseOperationalStatus(s string) (OperationalStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "":
		return ShelterAvailable, nil
	case "near capacity", "near_capacity":
		return ShelterNearCapacity, nil
	case "at capacity", "at_capacity":
		return ShelterAtCapacity, nil
	case "closed":
		return ShelterClosed, nil
	default:
		return 0, fmt.Errorf("unknown operational status %q", s)
	}
}

// CapacityThresholds maps a utilization ratio to an operational status
type CapacityThresholds struct {
	NearCapacity decimal.Decimal
	AtCapacity   decimal.Decimal
}

// DefaultCapacityThresholds returns 80% near capacity and 100% at capacity
func DefaultCapacityThresholds() CapacityThresholds {
	return CapacityThresholds{
		NearCapacity: decimal.NewFromFloat(0.8),
		AtCapacity:   decimal.NewFromInt(1),
	}
}

// Validate checks the thresholds are ordered and positive
func (t CapacityThresholds) Validate() error {
	if !t.NearCapacity.IsPositive() {
		return fmt.Errorf("near-capacity threshold must be positive, got %s", t.NearCapacity)
	}
	if t.AtCapacity.LessThan(t.NearCapacity) {
		return fmt.Errorf("at-capacity threshold %s is below near-capacity threshold %s", t.AtCapacity, t.NearCapacity)
	}
	return nil
}

// StatusFor classifies a utilization ratio
func (t CapacityThresholds) StatusFor(utilization decimal.Decimal) OperationalStatus {
	switch {
	case utilization.GreaterThanOrEqual(t.AtCapacity):
		return ShelterAtCapacity
	case utilization.GreaterThanOrEqual(t.NearCapacity):
		return ShelterNearCapacity
	default:
		return ShelterAvailable
	}
}

// Shelter represents a site housing disaster-affected occupants.
// CurrentOccupancy and Status are derived by the capacity ledger and
// must not be written by anything else.
type Shelter struct {
	ID               ShelterID         `json:"id"`
	DisasterID       DisasterID        `json:"disaster_id"`
	Name             string            `json:"name"`
	Location         string            `json:"location"`
	Capacity         Quantity          `json:"capacity"`
	CurrentOccupancy Quantity          `json:"current_occupancy"`
	Status           OperationalStatus `json:"status"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewShelter creates a validated, empty Shelter
func NewShelter(id ShelterID, disasterID DisasterID, name, location string, capacity Quantity) (*Shelter, error) {
	if id == "" {
		return nil, domainerrors.Validation("shelter id cannot be empty")
	}
	if name == "" {
		return nil, domainerrors.Validation("shelter name cannot be empty")
	}
	if capacity < 0 {
		return nil, domainerrors.Validation("shelter capacity cannot be negative, got %d", capacity)
	}

	return &Shelter{
		ID:         id,
		DisasterID: disasterID,
		Name:       name,
		Location:   location,
		Capacity:   capacity,
		Status:     ShelterAvailable,
	}, nil
}

// Utilization returns occupancy/capacity, or zero for a shelter with no capacity
func (s *Shelter) Utilization() decimal.Decimal {
	if s.Capacity <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.CurrentOccupancy)).Div(decimal.NewFromInt(int64(s.Capacity)))
}

// AvailableBeds returns the remaining capacity, never negative
func (s *Shelter) AvailableBeds() Quantity {
	if s.CurrentOccupancy >= s.Capacity {
		return 0
	}
	return s.Capacity - s.CurrentOccupancy
}

// Clone returns a copy safe to mutate
func (s *Shelter) Clone() *Shelter {
	c := *s
	return &c
}
