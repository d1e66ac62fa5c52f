package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

func TestScenarioValidator_ValidBatch(t *testing.T) {
	result := NewScenarioValidator().Validate(
		[]*entities.Disaster{{ID: "D1", Name: "Flood", Severity: 3}},
		[]*entities.Shelter{{ID: "S1", DisasterID: "D1", Name: "Gym", Capacity: 10}},
		[]*entities.Resource{
			{ID: "WATER", Name: "Water", Type: entities.Water},
			{ID: "KITS", DisasterID: "D1", Name: "Kits", Type: entities.Medical},
		},
		[]*entities.Request{
			{ID: "Q1", ShelterID: "S1", ResourceID: "WATER", QuantityRequested: 1, Priority: entities.PriorityLow},
			{ID: "Q2", ShelterID: "S1", ResourceID: "KITS", QuantityRequested: 1, Priority: entities.PriorityLow},
		},
	)

	assert.True(t, result.Valid())
	assert.NoError(t, result.Err())
	assert.Empty(t, result.UnknownDisasters)
}

func TestScenarioValidator_DetectsDuplicates(t *testing.T) {
	result := NewScenarioValidator().Validate(
		nil,
		[]*entities.Shelter{
			{ID: "S1", DisasterID: "D1", Name: "Gym"},
			{ID: "S1", DisasterID: "D1", Name: "Gym again"},
		},
		nil,
		[]*entities.Request{
			{ID: "Q1", ShelterID: "S1", ResourceID: "R1"},
			{ID: "Q1", ShelterID: "S1", ResourceID: "R1"},
		},
	)

	assert.False(t, result.Valid())
	assert.Equal(t, []string{"shelter S1", "request Q1"}, result.DuplicateIDs)
	assert.Equal(t, []entities.DisasterID{"D1"}, result.UnknownDisasters)

	err := result.Err()
	assert.True(t, domainerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "duplicate shelter S1 (and 1 more)")
}

func TestScenarioValidator_DetectsScopeMismatch(t *testing.T) {
	result := NewScenarioValidator().Validate(
		nil,
		[]*entities.Shelter{{ID: "S1", DisasterID: "D1", Name: "Gym"}},
		[]*entities.Resource{{ID: "R2", DisasterID: "D2", Name: "Tarps"}},
		[]*entities.Request{{ID: "Q1", ShelterID: "S1", ResourceID: "R2"}},
	)

	assert.Equal(t, []entities.RequestID{"Q1"}, result.ScopeMismatches)
	assert.EqualError(t, result.Err(),
		"INVALID_INPUT: request Q1: resource belongs to a different disaster than its shelter")
}

func TestServes(t *testing.T) {
	shelter := &entities.Shelter{ID: "S1", DisasterID: "D1"}

	tests := []struct {
		name     string
		disaster entities.DisasterID
		want     bool
	}{
		{"shared resource", "", true},
		{"same disaster", "D1", true},
		{"other disaster", "D2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serves(&entities.Resource{DisasterID: tt.disaster}, shelter))
		})
	}
}
