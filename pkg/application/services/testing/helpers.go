// Package testing builds in-memory relief scenarios for service tests.
package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/memory"
)

// DefaultDisaster is the disaster every fixture shelter belongs to unless overridden
const DefaultDisaster entities.DisasterID = "D1"

// BaseTime is the RequestedAt of the first fixture request; later requests
// are one minute apart in the order they were added.
var BaseTime = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

// Fixture accumulates records for a memory store
type Fixture struct {
	Disasters []*entities.Disaster
	Shelters  []*entities.Shelter
	Resources []*entities.Resource
	Requests  []*entities.Request
}

// NewFixture starts a fixture with a single active disaster
func NewFixture() *Fixture {
	return &Fixture{
		Disasters: []*entities.Disaster{{
			ID:        DefaultDisaster,
			Name:      "River Flood",
			Type:      "Flood",
			Severity:  4,
			Status:    entities.DisasterActive,
			StartedAt: BaseTime.Add(-48 * time.Hour),
		}},
	}
}

// WithShelter adds an empty, available shelter in the default disaster
func (f *Fixture) WithShelter(id string, capacity int64) *Fixture {
	return f.WithShelterIn(DefaultDisaster, id, capacity)
}

// WithShelterIn adds an empty, available shelter in the given disaster
func (f *Fixture) WithShelterIn(disaster entities.DisasterID, id string, capacity int64) *Fixture {
	f.Shelters = append(f.Shelters, &entities.Shelter{
		ID:         entities.ShelterID(id),
		DisasterID: disaster,
		Name:       id + " Shelter",
		Capacity:   entities.Quantity(capacity),
		Status:     entities.ShelterAvailable,
	})
	return f
}

// WithShelterOccupancy sets a shelter's stored occupancy without recomputing,
// for tests that exercise scoring against a given utilization.
func (f *Fixture) WithShelterOccupancy(id string, occupancy int64, status entities.OperationalStatus) *Fixture {
	for _, sh := range f.Shelters {
		if sh.ID == entities.ShelterID(id) {
			sh.CurrentOccupancy = entities.Quantity(occupancy)
			sh.Status = status
		}
	}
	return f
}

// WithResource adds a resource shared across disasters
func (f *Fixture) WithResource(id string, resourceType entities.ResourceType, stock, threshold int64) *Fixture {
	f.Resources = append(f.Resources, &entities.Resource{
		ID:               entities.ResourceID(id),
		Name:             id,
		Type:             resourceType,
		Unit:             "EA",
		StockLevel:       entities.Quantity(stock),
		MinimumThreshold: entities.Quantity(threshold),
	})
	return f
}

// WithRequest adds a request
func (f *Fixture) WithRequest(id, shelter, resource string, quantity int64, priority entities.Priority, status entities.RequestStatus) *Fixture {
	req := &entities.Request{
		ID:                entities.RequestID(id),
		ShelterID:         entities.ShelterID(shelter),
		ResourceID:        entities.ResourceID(resource),
		QuantityRequested: entities.Quantity(quantity),
		Priority:          priority,
		Status:            status,
		RequestedAt:       BaseTime.Add(time.Duration(len(f.Requests)) * time.Minute),
	}
	if status == entities.RequestFulfilled {
		req.QuantityFulfilled = req.QuantityRequested
	}
	f.Requests = append(f.Requests, req)
	return f
}

// WithRequestAt adds a pending request with an explicit timestamp
func (f *Fixture) WithRequestAt(id, shelter, resource string, quantity int64, priority entities.Priority, at time.Time) *Fixture {
	f.WithRequest(id, shelter, resource, quantity, priority, entities.RequestPending)
	f.Requests[len(f.Requests)-1].RequestedAt = at
	return f
}

// Store loads the fixture into a new memory store
func (f *Fixture) Store(opts ...memory.Option) *memory.Store {
	store := memory.NewStore(opts...)
	store.Load(f.Disasters, f.Shelters, f.Resources, f.Requests)
	return store
}

// Seed writes the fixture into any store through a single transaction
func (f *Fixture) Seed(ctx context.Context, store repositories.Store) error {
	return store.Atomic(ctx, func(tx repositories.Tx) error {
		for _, d := range f.Disasters {
			if err := tx.SaveDisaster(ctx, d.Clone()); err != nil {
				return err
			}
		}
		for _, sh := range f.Shelters {
			if err := tx.SaveShelter(ctx, sh.Clone()); err != nil {
				return err
			}
		}
		for _, r := range f.Resources {
			if err := tx.SaveResource(ctx, r.Clone()); err != nil {
				return err
			}
		}
		for _, req := range f.Requests {
			if err := tx.SaveRequest(ctx, req.Clone()); err != nil {
				return err
			}
		}
		return nil
	})
}

// BuildHurricaneScenario returns a two-shelter scenario with competing
// demand for water, a critical medical kit stock and occupancy requests.
func BuildHurricaneScenario() *Fixture {
	return NewFixture().
		WithShelter("NORTH_HS", 200).
		WithShelter("EAST_GYM", 80).
		WithResource("WATER", entities.Water, 500, 100).
		WithResource("MED_KIT", entities.Medical, 12, 20).
		WithResource("COTS", entities.Bedding, 40, 10).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("OCC-1", "NORTH_HS", "BEDS", 120, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("OCC-2", "EAST_GYM", "BEDS", 70, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("OCC-3", "EAST_GYM", "BEDS", 8, entities.PriorityUrgent, entities.RequestPending).
		WithRequest("WAT-1", "NORTH_HS", "WATER", 300, entities.PriorityHigh, entities.RequestPending).
		WithRequest("WAT-2", "EAST_GYM", "WATER", 250, entities.PriorityUrgent, entities.RequestPending).
		WithRequest("MED-1", "EAST_GYM", "MED_KIT", 10, entities.PriorityCritical, entities.RequestPending).
		WithRequest("MED-2", "NORTH_HS", "MED_KIT", 5, entities.PriorityMedium, entities.RequestPending).
		WithRequest("COT-1", "NORTH_HS", "COTS", 20, entities.PriorityLow, entities.RequestRejected)
}

var resourceTypes = []entities.ResourceType{
	entities.Food, entities.Water, entities.Medical, entities.Hygiene,
	entities.Bedding, entities.Personnel, entities.Occupancy,
}

// BuildLargeScenario returns a deterministic scenario of the given size for
// benchmarks. Stock covers roughly half the open demand so the plan has
// both partial and zero recommendations.
func BuildLargeScenario(shelters, resources, requests int) *Fixture {
	f := NewFixture()
	for i := 0; i < shelters; i++ {
		f.WithShelter(fmt.Sprintf("SHELTER_%04d", i), int64(100+i%400))
	}

	demandPerResource := int64(requests/max(resources, 1)+1) * 25
	for i := 0; i < resources; i++ {
		f.WithResource(fmt.Sprintf("RES_%04d", i), resourceTypes[i%len(resourceTypes)],
			demandPerResource/2, demandPerResource/10)
	}

	priorities := []entities.Priority{
		entities.PriorityLow, entities.PriorityMedium, entities.PriorityHigh,
		entities.PriorityUrgent, entities.PriorityCritical,
	}
	for i := 0; i < requests; i++ {
		status := entities.RequestPending
		if i%7 == 0 {
			status = entities.RequestFulfilled
		}
		f.WithRequest(
			fmt.Sprintf("REQ_%06d", i),
			fmt.Sprintf("SHELTER_%04d", i%max(shelters, 1)),
			fmt.Sprintf("RES_%04d", (i*31)%max(resources, 1)),
			int64(1+i%50),
			priorities[(i*13)%len(priorities)],
			status,
		)
	}
	return f
}
