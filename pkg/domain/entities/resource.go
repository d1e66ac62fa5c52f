package entities

import (
	"fmt"
	"strings"

	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// ResourceID identifies a tracked resource
type ResourceID string

// ResourceType classifies a resource
type ResourceType int

const (
	Food ResourceType = iota
	Water
	Medical
	Hygiene
	Bedding
	Personnel
	// Occupancy is bed and floor space; fulfilled Occupancy requests
	// count toward a shelter's current occupancy.
	Occupancy
)

// String method for ResourceType enum
func (t ResourceType) String() string {
	switch t {
	case Food:
		return "Food"
	case Water:
		return "Water"
	case Medical:
		return "Medical"
	case Hygiene:
		return "Hygiene"
	case Bedding:
		return "Bedding"
	case Personnel:
		return "Personnel"
	case Occupancy:
		return "Occupancy"
	default:
		return "Unknown"
	}
}

// MarshalText renders the type by name
func (t ResourceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ResourceType) UnmarshalText(text []byte) error {
	parsed, err := ParseResourceType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseResourceType parses the name produced by String
func ParseResourceType(s string) (ResourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "food":
		return Food, nil
	case "water":
		return Water, nil
	case "medical":
		return Medical, nil
	case "hygiene":
		return Hygiene, nil
	case "bedding":
		return Bedding, nil
	case "personnel":
		return Personnel, nil
	case "occupancy":
		return Occupancy, nil
	default:
		return 0, fmt.Errorf("unknown resource type %q", s)
	}
}

// Resource is a stock of supplies or capability shared by all shelters in its scope
type Resource struct {
	ID               ResourceID   `json:"id"`
	DisasterID       DisasterID   `json:"disaster_id"`
	Name             string       `json:"name"`
	Type             ResourceType `json:"type"`
	Unit             string       `json:"unit"`
	StockLevel       Quantity     `json:"stock_level"`
	MinimumThreshold Quantity     `json:"minimum_threshold"`
	// Version increments on every write and guards against lost updates.
	Version int `json:"version"`
}

// NewResource creates a validated Resource
func NewResource(id ResourceID, disasterID DisasterID, name string, resourceType ResourceType, stock, threshold Quantity) (*Resource, error) {
	if id == "" {
		return nil, domainerrors.Validation("resource id cannot be empty")
	}
	if name == "" {
		return nil, domainerrors.Validation("resource name cannot be empty")
	}
	if stock < 0 {
		return nil, domainerrors.Validation("stock level cannot be negative, got %d", stock)
	}
	if threshold < 0 {
		return nil, domainerrors.Validation("minimum threshold cannot be negative, got %d", threshold)
	}

	return &Resource{
		ID:               id,
		DisasterID:       disasterID,
		Name:             name,
		Type:             resourceType,
		StockLevel:       stock,
		MinimumThreshold: threshold,
	}, nil
}

// IsCritical reports whether stock is at or below the minimum threshold
func (r *Resource) IsCritical() bool {
	return r.StockLevel <= r.MinimumThreshold
}

// Headroom returns stock above the minimum threshold; negative means below it
func (r *Resource) Headroom() Quantity {
	return r.StockLevel - r.MinimumThreshold
}

// Clone returns a copy safe to mutate
func (r *Resource) Clone() *Resource {
	c := *r
	return &c
}
