package capacity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svctesting "github.com/vsinha/relief/pkg/application/services/testing"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/memory"
)

func newLedger(store repositories.Store) *Ledger {
	return NewLedger(store, Config{
		Thresholds: entities.DefaultCapacityThresholds(),
		Logger:     logging.NewTestLogger(),
		Now:        func() time.Time { return svctesting.BaseTime },
	})
}

func TestLedger_Recompute_ScenarioA(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S", 100).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("Q1", "S", "BEDS", 30, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("Q2", "S", "BEDS", 20, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("Q3", "S", "BEDS", 10, entities.PriorityHigh, entities.RequestFulfilled).
		Store()

	updated, err := newLedger(store).Recompute(ctx, "S")
	require.NoError(t, err)
	require.Len(t, updated, 1)

	shelter, err := store.GetShelter(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(60), shelter.CurrentOccupancy)
	assert.Equal(t, entities.ShelterAvailable, shelter.Status)
	assert.True(t, shelter.Utilization().Equal(decimal.NewFromFloat(0.6)))
	assert.Equal(t, svctesting.BaseTime, shelter.UpdatedAt)
}

func TestLedger_Recompute_CountsOnlyFulfilledOccupancy(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S", 100).
		WithShelter("OTHER", 100).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithResource("WATER", entities.Water, 1000, 0).
		WithRequest("fulfilled-beds", "S", "BEDS", 40, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("pending-beds", "S", "BEDS", 25, entities.PriorityHigh, entities.RequestPending).
		WithRequest("approved-beds", "S", "BEDS", 15, entities.PriorityHigh, entities.RequestApproved).
		WithRequest("rejected-beds", "S", "BEDS", 35, entities.PriorityHigh, entities.RequestRejected).
		WithRequest("fulfilled-water", "S", "WATER", 500, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("other-shelter", "OTHER", "BEDS", 90, entities.PriorityHigh, entities.RequestFulfilled).
		Store()

	_, err := newLedger(store).Recompute(ctx, "S", "OTHER")
	require.NoError(t, err)

	s, err := store.GetShelter(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(40), s.CurrentOccupancy)
	assert.Equal(t, entities.ShelterAvailable, s.Status)

	other, err := store.GetShelter(ctx, "OTHER")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(90), other.CurrentOccupancy)
	assert.Equal(t, entities.ShelterNearCapacity, other.Status)
}

func TestLedger_Recompute_StatusThresholds(t *testing.T) {
	tests := []struct {
		name      string
		occupancy int64
		expected  entities.OperationalStatus
	}{
		{"empty", 0, entities.ShelterAvailable},
		{"below near", 79, entities.ShelterAvailable},
		{"near", 80, entities.ShelterNearCapacity},
		{"full", 100, entities.ShelterAtCapacity},
		{"overfull", 130, entities.ShelterAtCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := svctesting.NewFixture().
				WithShelter("S", 100).
				WithResource("BEDS", entities.Occupancy, 1000, 0)
			if tt.occupancy > 0 {
				f.WithRequest("Q", "S", "BEDS", tt.occupancy, entities.PriorityHigh, entities.RequestFulfilled)
			}
			store := f.Store()

			_, err := newLedger(store).Recompute(ctx, "S")
			require.NoError(t, err)

			s, err := store.GetShelter(ctx, "S")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.Status)
		})
	}
}

func TestLedger_Recompute_CustomThresholds(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S", 100).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("Q", "S", "BEDS", 60, entities.PriorityHigh, entities.RequestFulfilled).
		Store()

	ledger := NewLedger(store, Config{
		Thresholds: entities.CapacityThresholds{
			NearCapacity: decimal.NewFromFloat(0.5),
			AtCapacity:   decimal.NewFromFloat(0.9),
		},
		Logger: logging.NewTestLogger(),
	})
	_, err := ledger.Recompute(ctx, "S")
	require.NoError(t, err)

	s, err := store.GetShelter(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, entities.ShelterNearCapacity, s.Status)
}

func TestLedger_Recompute_ClosedShelterStaysClosed(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S", 100).
		WithShelterOccupancy("S", 0, entities.ShelterClosed).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("Q", "S", "BEDS", 95, entities.PriorityHigh, entities.RequestFulfilled).
		Store()

	_, err := newLedger(store).Recompute(ctx, "S")
	require.NoError(t, err)

	s, err := store.GetShelter(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(95), s.CurrentOccupancy)
	assert.Equal(t, entities.ShelterClosed, s.Status)
}

func TestLedger_Recompute_ZeroCapacity(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().
		WithShelter("S", 0).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("Q", "S", "BEDS", 5, entities.PriorityHigh, entities.RequestFulfilled).
		Store()

	_, err := newLedger(store).Recompute(ctx, "S")
	require.NoError(t, err)

	s, err := store.GetShelter(ctx, "S")
	require.NoError(t, err)
	assert.True(t, s.Utilization().IsZero())
	assert.Equal(t, entities.ShelterAvailable, s.Status)
}

func TestLedger_Recompute_IgnoresDuplicatesAndBlanks(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().WithShelter("S", 10).Store()

	updated, err := newLedger(store).Recompute(ctx, "S", "", "S")
	require.NoError(t, err)
	assert.Len(t, updated, 1)

	updated, err = newLedger(store).Recompute(ctx)
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestLedger_Recompute_UnknownShelter(t *testing.T) {
	ctx := context.Background()
	store := svctesting.NewFixture().WithShelter("S", 10).Store()

	_, err := newLedger(store).Recompute(ctx, "S", "GHOST")
	require.Error(t, err)
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestLedger_Recompute_ReportsEveryFailedShelter(t *testing.T) {
	ctx := context.Background()
	fixture := svctesting.NewFixture().
		WithShelter("A", 100).
		WithShelter("B", 100).
		WithShelter("C", 100).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("QA", "A", "BEDS", 10, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("QB", "B", "BEDS", 20, entities.PriorityHigh, entities.RequestFulfilled).
		WithRequest("QC", "C", "BEDS", 30, entities.PriorityHigh, entities.RequestFulfilled)
	store := fixture.Store(memory.WithWriteFault(func(entity, id string) error {
		if entity == "shelter" && (id == "A" || id == "C") {
			return errors.New("write refused")
		}
		return nil
	}))

	_, err := newLedger(store).Recompute(ctx, "A", "B", "C")
	require.Error(t, err)
	assert.True(t, domainerrors.IsPersistenceFailure(err))
	assert.ElementsMatch(t, []string{"A", "C"}, domainerrors.FailedIDs(err))

	// Nothing from the batch is visible, including the shelter that saved
	b, err := store.GetShelter(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(0), b.CurrentOccupancy)
}

func TestLedger_RecomputeAll(t *testing.T) {
	ctx := context.Background()
	store := svctesting.BuildHurricaneScenario().Store()

	updated, err := newLedger(store).RecomputeAll(ctx, entities.AllScopes())
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	north, err := store.GetShelter(ctx, "NORTH_HS")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(120), north.CurrentOccupancy)
	assert.Equal(t, entities.ShelterAvailable, north.Status)

	east, err := store.GetShelter(ctx, "EAST_GYM")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(70), east.CurrentOccupancy)
	assert.Equal(t, entities.ShelterNearCapacity, east.Status)
}

// recordingStore logs the order in which a recompute touches the store
type recordingStore struct {
	*memory.Store
	calls []string
}

func (s *recordingStore) Atomic(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.Store.Atomic(ctx, func(tx repositories.Tx) error {
		return fn(&recordingTx{Tx: tx, store: s})
	})
}

type recordingTx struct {
	repositories.Tx
	store *recordingStore
}

func (t *recordingTx) LockShelters(ctx context.Context, ids ...entities.ShelterID) error {
	for _, id := range ids {
		t.store.calls = append(t.store.calls, "lock "+string(id))
	}
	return t.Tx.LockShelters(ctx, ids...)
}

func (t *recordingTx) ListRequests(ctx context.Context, filter repositories.RequestFilter) ([]*entities.Request, error) {
	t.store.calls = append(t.store.calls, "list requests")
	return t.Tx.ListRequests(ctx, filter)
}

func TestLedger_Recompute_LocksSheltersBeforeReadingRequests(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{Store: svctesting.NewFixture().
		WithShelter("A", 100).
		WithShelter("B", 100).
		WithResource("BEDS", entities.Occupancy, 1000, 0).
		WithRequest("QB", "B", "BEDS", 20, entities.PriorityHigh, entities.RequestFulfilled).
		Store()}

	_, err := newLedger(store).Recompute(ctx, "B", "A", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"lock A", "lock B", "list requests"}, store.calls)
}
