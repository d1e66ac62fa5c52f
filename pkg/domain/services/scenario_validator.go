// Package services holds domain rules that span more than one entity.
package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// ScenarioValidator checks a batch of records for integrity before import
type ScenarioValidator struct{}

// NewScenarioValidator creates a new scenario validator
func NewScenarioValidator() *ScenarioValidator {
	return &ScenarioValidator{}
}

// ValidationResult contains the results of scenario validation
type ValidationResult struct {
	DuplicateIDs    []string
	ScopeMismatches []entities.RequestID
	// UnknownDisasters lists disaster IDs referenced by shelters or
	// resources but not defined in the batch. They may already exist in
	// the store, so they are not errors.
	UnknownDisasters []entities.DisasterID
	Errors           []string
}

// Valid reports whether the batch can be imported
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a validation error summarizing Errors, or nil
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	if len(r.Errors) == 1 {
		return domainerrors.Validation("%s", r.Errors[0])
	}
	return domainerrors.Validation("%s (and %d more)", r.Errors[0], len(r.Errors)-1)
}

// Validate checks for duplicate IDs within each record kind and for
// requests whose resource belongs to a different disaster than their
// shelter. References to records outside the batch are not checked here.
func (v *ScenarioValidator) Validate(
	disasters []*entities.Disaster,
	shelters []*entities.Shelter,
	resources []*entities.Resource,
	requests []*entities.Request,
) *ValidationResult {
	result := &ValidationResult{}

	disasterIDs := make(map[entities.DisasterID]bool, len(disasters))
	for _, d := range disasters {
		if disasterIDs[d.ID] {
			result.DuplicateIDs = append(result.DuplicateIDs, "disaster "+string(d.ID))
		}
		disasterIDs[d.ID] = true
	}

	unknown := make(map[entities.DisasterID]bool)
	noteDisaster := func(id entities.DisasterID) {
		if id != "" && !disasterIDs[id] {
			unknown[id] = true
		}
	}

	shelterByID := make(map[entities.ShelterID]*entities.Shelter, len(shelters))
	for _, sh := range shelters {
		if _, dup := shelterByID[sh.ID]; dup {
			result.DuplicateIDs = append(result.DuplicateIDs, "shelter "+string(sh.ID))
		}
		shelterByID[sh.ID] = sh
		noteDisaster(sh.DisasterID)
	}

	resourceByID := make(map[entities.ResourceID]*entities.Resource, len(resources))
	for _, r := range resources {
		if _, dup := resourceByID[r.ID]; dup {
			result.DuplicateIDs = append(result.DuplicateIDs, "resource "+string(r.ID))
		}
		resourceByID[r.ID] = r
		noteDisaster(r.DisasterID)
	}

	requestIDs := make(map[entities.RequestID]bool, len(requests))
	for _, req := range requests {
		if requestIDs[req.ID] {
			result.DuplicateIDs = append(result.DuplicateIDs, "request "+string(req.ID))
		}
		requestIDs[req.ID] = true

		shelter, okS := shelterByID[req.ShelterID]
		resource, okR := resourceByID[req.ResourceID]
		if okS && okR && !Serves(resource, shelter) {
			result.ScopeMismatches = append(result.ScopeMismatches, req.ID)
		}
	}

	for id := range unknown {
		result.UnknownDisasters = append(result.UnknownDisasters, id)
	}
	sort.Slice(result.UnknownDisasters, func(i, j int) bool {
		return result.UnknownDisasters[i] < result.UnknownDisasters[j]
	})

	for _, dup := range result.DuplicateIDs {
		result.Errors = append(result.Errors, fmt.Sprintf("duplicate %s", dup))
	}
	for _, id := range result.ScopeMismatches {
		result.Errors = append(result.Errors, fmt.Sprintf("request %s: resource belongs to a different disaster than its shelter", id))
	}
	return result
}

// Serves reports whether resource may be allocated to shelter: the resource
// is shared, or scoped to the shelter's disaster.
func Serves(resource *entities.Resource, shelter *entities.Shelter) bool {
	return resource.DisasterID == "" || resource.DisasterID == shelter.DisasterID
}
