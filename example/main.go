package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/application/services/allocation"
	"github.com/vsinha/relief/pkg/application/services/capacity"
	"github.com/vsinha/relief/pkg/application/services/intake"
	"github.com/vsinha/relief/pkg/application/services/recommendation"
	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()
	logger := logging.NewTestLogger()

	// Create the store and services
	store := memory.NewStore()
	ledger := capacity.NewLedger(store, capacity.Config{
		Thresholds: entities.DefaultCapacityThresholds(),
		Logger:     logger,
	})
	engine := recommendation.NewEngine(store, recommendation.Config{
		Weights: entities.DefaultUrgencyWeights(),
		Logger:  logger,
	})
	executor := allocation.NewExecutor(store, ledger, allocation.Config{Logger: logger})
	intakeSvc := intake.NewService(store, ledger, intake.Config{Logger: logger})

	// Set up a small flood response
	scenario, err := buildFloodScenario()
	if err != nil {
		fmt.Printf("❌ Invalid scenario: %v\n", err)
		return
	}
	shelters, err := intakeSvc.Import(ctx, scenario)
	if err != nil {
		fmt.Printf("❌ Import failed: %v\n", err)
		return
	}

	fmt.Println("🌊 River Flood response")
	for _, sh := range shelters {
		fmt.Printf("  %-10s %3d / %3d  %s\n", sh.ID, sh.CurrentOccupancy, sh.Capacity, sh.Status)
	}
	fmt.Println()

	// Rank open requests
	recs, err := engine.Generate(ctx, entities.ForDisaster("FLOOD"))
	if err != nil {
		fmt.Printf("❌ Recommendation failed: %v\n", err)
		return
	}

	fmt.Println("📋 Recommendations:")
	for i, rec := range recs {
		fmt.Printf("  %d. %-8s %-6s recommend %3d of %3d (urgency %s)\n",
			i+1, rec.Request.ID, rec.Request.ResourceID,
			rec.RecommendedQuantity, rec.Request.Outstanding(), rec.UrgencyScore.StringFixed(2))
		fmt.Printf("     %s\n", rec.Reason)
	}
	fmt.Println()

	// Execute every serviceable recommendation
	fmt.Println("🚚 Executing:")
	for _, rec := range recs {
		if !rec.Serviceable() {
			fmt.Printf("  ⏭️  %s: no stock left\n", rec.Request.ID)
			continue
		}
		result, err := executor.Execute(ctx, rec.Request.ID, rec.RecommendedQuantity, "dispatched from depot")
		if err != nil {
			fmt.Printf("  ❌ %s: %v\n", rec.Request.ID, err)
			continue
		}
		fmt.Printf("  ✅ %s\n", result.Message)
	}
	fmt.Println()

	after, err := store.ListShelters(ctx, entities.ForDisaster("FLOOD"))
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("🏠 Shelters after allocation:")
	for _, sh := range after {
		fmt.Printf("  %-10s %3d / %3d  %s\n", sh.ID, sh.CurrentOccupancy, sh.Capacity, sh.Status)
	}
}

func buildFloodScenario() (*dto.Scenario, error) {
	started := time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC)

	disaster, err := entities.NewDisaster("FLOOD", "River Flood", "Flood", 3, started)
	if err != nil {
		return nil, err
	}

	school, err := entities.NewShelter("SCHOOL", "FLOOD", "Lincoln Elementary", "22 Oak Ave", 150)
	if err != nil {
		return nil, err
	}
	arena, err := entities.NewShelter("ARENA", "FLOOD", "County Arena", "1 Fair Way", 400)
	if err != nil {
		return nil, err
	}

	beds, err := entities.NewResource("BEDS", "FLOOD", "Shelter Beds", entities.Occupancy, 600, 0)
	if err != nil {
		return nil, err
	}
	water, err := entities.NewResource("WATER", "", "Bottled Water", entities.Water, 180, 50)
	if err != nil {
		return nil, err
	}

	scenario := &dto.Scenario{
		Disasters: []*entities.Disaster{disaster},
		Shelters:  []*entities.Shelter{school, arena},
		Resources: []*entities.Resource{beds, water},
	}

	requests := []struct {
		id       entities.RequestID
		shelter  entities.ShelterID
		resource entities.ResourceID
		quantity entities.Quantity
		priority entities.Priority
		status   entities.RequestStatus
	}{
		{"BED-1", "SCHOOL", "BEDS", 120, entities.PriorityHigh, entities.RequestFulfilled},
		{"BED-2", "SCHOOL", "BEDS", 25, entities.PriorityUrgent, entities.RequestPending},
		{"WAT-1", "ARENA", "WATER", 120, entities.PriorityHigh, entities.RequestPending},
		{"WAT-2", "SCHOOL", "WATER", 100, entities.PriorityCritical, entities.RequestPending},
	}
	for i, r := range requests {
		req, err := entities.NewRequest(r.shelter, r.resource, r.quantity, r.priority, started.Add(time.Duration(i)*time.Minute))
		if err != nil {
			return nil, err
		}
		req.ID = r.id
		req.Status = r.status
		if r.status == entities.RequestFulfilled {
			req.QuantityFulfilled = r.quantity
		}
		scenario.Requests = append(scenario.Requests, req)
	}
	return scenario, nil
}
