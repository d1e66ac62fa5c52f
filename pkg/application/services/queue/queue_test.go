package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svctesting "github.com/vsinha/relief/pkg/application/services/testing"
	"github.com/vsinha/relief/pkg/domain/entities"
)

func requestIDs(views []entities.RequestView) []entities.RequestID {
	ids := make([]entities.RequestID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.Request.ID)
	}
	return ids
}

func TestQueue_ListPending_PriorityThenFIFO(t *testing.T) {
	ctx := context.Background()
	base := svctesting.BaseTime
	store := svctesting.NewFixture().
		WithShelter("S", 100).
		WithResource("WATER", entities.Water, 100, 0).
		WithRequestAt("low-old", "S", "WATER", 1, entities.PriorityLow, base).
		WithRequestAt("crit-new", "S", "WATER", 1, entities.PriorityCritical, base.Add(2*time.Hour)).
		WithRequestAt("crit-old", "S", "WATER", 1, entities.PriorityCritical, base.Add(time.Hour)).
		WithRequestAt("high", "S", "WATER", 1, entities.PriorityHigh, base).
		Store()

	views, err := NewQueue(store).ListPending(ctx, entities.AllScopes())
	require.NoError(t, err)
	assert.Equal(t, []entities.RequestID{"crit-old", "crit-new", "high", "low-old"}, requestIDs(views))
}

func TestQueue_ListPending_OnlyOpenRequestsJoined(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S", 100).
		WithResource("WATER", entities.Water, 100, 0).
		WithRequest("pending", "S", "WATER", 1, entities.PriorityLow, entities.RequestPending).
		WithRequest("approved", "S", "WATER", 1, entities.PriorityLow, entities.RequestApproved).
		WithRequest("fulfilled", "S", "WATER", 1, entities.PriorityLow, entities.RequestFulfilled).
		WithRequest("rejected", "S", "WATER", 1, entities.PriorityLow, entities.RequestRejected).
		Store()

	views, err := NewQueue(store).ListPending(ctx, entities.AllScopes())
	require.NoError(t, err)
	assert.Equal(t, []entities.RequestID{"pending", "approved"}, requestIDs(views))
	for _, v := range views {
		require.NotNil(t, v.Shelter)
		require.NotNil(t, v.Resource)
		assert.Equal(t, entities.ShelterID("S"), v.Shelter.ID)
		assert.Equal(t, entities.ResourceID("WATER"), v.Resource.ID)
	}
}

func TestQueue_ListPending_Scoped(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S1", 100).
		WithShelterIn("D2", "S2", 100).
		WithResource("WATER", entities.Water, 100, 0).
		WithRequest("d1", "S1", "WATER", 1, entities.PriorityLow, entities.RequestPending).
		WithRequest("d2", "S2", "WATER", 1, entities.PriorityLow, entities.RequestPending).
		Store()

	views, err := NewQueue(store).ListPending(ctx, entities.ForDisaster("D2"))
	require.NoError(t, err)
	assert.Equal(t, []entities.RequestID{"d2"}, requestIDs(views))
}

func TestQueue_ListPending_Empty(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().WithShelter("S", 10).Store()

	views, err := NewQueue(store).ListPending(ctx, entities.AllScopes())
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}
