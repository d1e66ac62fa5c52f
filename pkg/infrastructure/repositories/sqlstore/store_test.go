package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/relief/pkg/application/services/allocation"
	"github.com/vsinha/relief/pkg/application/services/capacity"
	svctesting "github.com/vsinha/relief/pkg/application/services/testing"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/sqlstore"
)

// setupTestDB opens a fresh SQLite database seeded with the hurricane scenario
func setupTestDB(t *testing.T) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "relief.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, svctesting.BuildHurricaneScenario().Seed(ctx, store))
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	disaster, err := store.GetDisaster(ctx, svctesting.DefaultDisaster)
	require.NoError(t, err)
	assert.Equal(t, entities.DisasterActive, disaster.Status)
	assert.True(t, disaster.StartedAt.Equal(svctesting.BaseTime.Add(-48*time.Hour)))

	shelter, err := store.GetShelter(ctx, "EAST_GYM")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(80), shelter.Capacity)
	assert.Equal(t, entities.ShelterAvailable, shelter.Status)

	resource, err := store.GetResource(ctx, "MED_KIT")
	require.NoError(t, err)
	assert.Equal(t, entities.Medical, resource.Type)
	assert.Equal(t, entities.Quantity(12), resource.StockLevel)
	assert.Equal(t, 1, resource.Version)

	req, err := store.GetRequest(ctx, "OCC-1")
	require.NoError(t, err)
	assert.Equal(t, entities.RequestFulfilled, req.Status)
	assert.Equal(t, entities.Quantity(120), req.QuantityFulfilled)
	assert.Equal(t, entities.PriorityHigh, req.Priority)
	assert.True(t, req.RequestedAt.Equal(svctesting.BaseTime))
	assert.Nil(t, req.Comments)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	_, err := store.GetShelter(ctx, "NOPE")
	assert.True(t, domainerrors.IsNotFound(err))
	_, err = store.GetResource(ctx, "NOPE")
	assert.True(t, domainerrors.IsNotFound(err))
	_, err = store.GetRequest(ctx, "NOPE")
	assert.True(t, domainerrors.IsNotFound(err))

	err = store.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.DeleteRequest(ctx, "NOPE")
	})
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestStore_ListRequests_Filters(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	all, err := store.ListRequests(ctx, repositories.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 8)
	assert.Equal(t, entities.RequestID("OCC-1"), all[0].ID)

	open, err := store.ListRequests(ctx, repositories.RequestFilter{Statuses: repositories.OpenStatuses})
	require.NoError(t, err)
	assert.Len(t, open, 5)

	east, err := store.ListRequests(ctx, repositories.RequestFilter{
		ShelterIDs: []entities.ShelterID{"EAST_GYM"},
		ResourceID: "BEDS",
	})
	require.NoError(t, err)
	assert.Len(t, east, 2)

	other, err := store.ListRequests(ctx, repositories.RequestFilter{Scope: entities.ForDisaster("OTHER")})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ScopeIncludesSharedResources(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	require.NoError(t, store.Atomic(ctx, func(tx repositories.Tx) error {
		if err := tx.SaveDisaster(ctx, &entities.Disaster{ID: "D2", Name: "Wildfire", Severity: 3}); err != nil {
			return err
		}
		if err := tx.SaveShelter(ctx, &entities.Shelter{ID: "HILL", DisasterID: "D2", Name: "Hill", Capacity: 40}); err != nil {
			return err
		}
		return tx.SaveResource(ctx, &entities.Resource{ID: "MASKS", DisasterID: "D2", Name: "Masks", Type: entities.Medical, StockLevel: 100})
	}))

	shelters, err := store.ListShelters(ctx, entities.ForDisaster("D2"))
	require.NoError(t, err)
	require.Len(t, shelters, 1)
	assert.Equal(t, entities.ShelterID("HILL"), shelters[0].ID)

	resources, err := store.ListResources(ctx, entities.ForDisaster("D2"))
	require.NoError(t, err)
	// Four shared resources plus the scoped one
	assert.Len(t, resources, 5)

	d1Resources, err := store.ListResources(ctx, entities.ForDisaster(svctesting.DefaultDisaster))
	require.NoError(t, err)
	assert.Len(t, d1Resources, 4)

	disasters, err := store.ListDisasters(ctx)
	require.NoError(t, err)
	assert.Len(t, disasters, 2)
}

func TestStore_StaleWrite(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	stale, err := store.GetResource(ctx, "WATER")
	require.NoError(t, err)

	require.NoError(t, store.Atomic(ctx, func(tx repositories.Tx) error {
		fresh, err := tx.GetResource(ctx, "WATER")
		if err != nil {
			return err
		}
		fresh.StockLevel = 400
		return tx.SaveResource(ctx, fresh)
	}))

	err = store.Atomic(ctx, func(tx repositories.Tx) error {
		stale.StockLevel = 1
		return tx.SaveResource(ctx, stale)
	})
	assert.ErrorIs(t, err, repositories.ErrStaleWrite)

	current, err := store.GetResource(ctx, "WATER")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(400), current.StockLevel)
	assert.Equal(t, 2, current.Version)
}

func TestStore_AtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	err := store.Atomic(ctx, func(tx repositories.Tx) error {
		req, err := tx.GetRequest(ctx, "WAT-1")
		if err != nil {
			return err
		}
		if err := req.Reject("test"); err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return err
		}
		return domainerrors.Validation("abort")
	})
	require.Error(t, err)

	req, err := store.GetRequest(ctx, "WAT-1")
	require.NoError(t, err)
	assert.Equal(t, entities.RequestPending, req.Status)
}

func TestStore_LockShelters(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	require.NoError(t, store.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.LockShelters(ctx, "NORTH_HS", "EAST_GYM")
	}))

	updated, err := capacity.NewLedger(store, capacity.Config{
		Thresholds: entities.DefaultCapacityThresholds(),
		Logger:     logging.NewTestLogger(),
	}).Recompute(ctx, "EAST_GYM", "NORTH_HS")
	require.NoError(t, err)
	assert.Len(t, updated, 2)
}

func TestStore_CommentsPersist(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	require.NoError(t, store.Atomic(ctx, func(tx repositories.Tx) error {
		req, err := tx.GetRequest(ctx, "WAT-1")
		if err != nil {
			return err
		}
		if err := req.Fulfill(100, "first truck"); err != nil {
			return err
		}
		return tx.SaveRequest(ctx, req)
	}))

	req, err := store.GetRequest(ctx, "WAT-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first truck"}, req.Comments)
	assert.Equal(t, entities.RequestApproved, req.Status)
	assert.Equal(t, entities.Quantity(100), req.QuantityFulfilled)
}

func TestStore_ExecutorScenarioC(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	logger := logging.NewTestLogger()
	ledger := capacity.NewLedger(store, capacity.Config{
		Thresholds: entities.DefaultCapacityThresholds(),
		Logger:     logger,
	})
	executor := allocation.NewExecutor(store, ledger, allocation.Config{Logger: logger})

	_, err := executor.Execute(ctx, "MED-1", 10, "")
	require.NoError(t, err)

	_, err = executor.Execute(ctx, "MED-2", 5, "")
	require.Error(t, err)
	assert.True(t, domainerrors.IsStockConflict(err))

	resource, err := store.GetResource(ctx, "MED_KIT")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(2), resource.StockLevel)

	req, err := store.GetRequest(ctx, "MED-2")
	require.NoError(t, err)
	assert.Equal(t, entities.RequestPending, req.Status)

	// An occupancy allocation recomputes the shelter inside the same transaction
	_, err = executor.Approve(ctx, "OCC-3")
	require.NoError(t, err)
	shelter, err := store.GetShelter(ctx, "EAST_GYM")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(78), shelter.CurrentOccupancy)
}
