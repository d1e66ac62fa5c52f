// Package capacity keeps shelter occupancy consistent with the request ledger.
//
// A shelter's occupancy is never written directly. It is recomputed from the
// Fulfilled Occupancy-type requests against the shelter every time one of
// its requests is inserted, updated or deleted, inside the same transaction
// as the triggering write.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/metrics"
)

// Config holds the ledger's dependencies
type Config struct {
	Thresholds entities.CapacityThresholds
	Logger     logr.Logger
	Metrics    *metrics.Recorder
	// Now stamps UpdatedAt; defaults to time.Now
	Now func() time.Time
}

// Ledger recomputes shelter occupancy and operational status
type Ledger struct {
	store      repositories.Store
	thresholds entities.CapacityThresholds
	logger     logr.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
}

// NewLedger creates a ledger over store
func NewLedger(store repositories.Store, cfg Config) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:      store,
		thresholds: cfg.Thresholds,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        now,
	}
}

// Thresholds returns the thresholds used to classify shelters
func (l *Ledger) Thresholds() entities.CapacityThresholds {
	return l.thresholds
}

// Recompute recomputes the given shelters in a transaction of its own
func (l *Ledger) Recompute(ctx context.Context, shelterIDs ...entities.ShelterID) ([]*entities.Shelter, error) {
	var updated []*entities.Shelter
	err := l.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		updated, err = l.RecomputeTx(ctx, tx, shelterIDs...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecomputeAll recomputes every shelter in scope
func (l *Ledger) RecomputeAll(ctx context.Context, scope entities.Scope) ([]*entities.Shelter, error) {
	shelters, err := l.store.ListShelters(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list shelters: %w", err)
	}
	ids := make([]entities.ShelterID, 0, len(shelters))
	for _, sh := range shelters {
		ids = append(ids, sh.ID)
	}
	return l.Recompute(ctx, ids...)
}

// RecomputeTx recomputes the given shelters within tx. Duplicate and empty
// IDs are ignored. The shelters are locked before the request ledger is
// read, so concurrent recomputes of one shelter see each other's requests. If any shelter fails to persist, the returned
// PersistenceFailure lists every shelter that failed and tx must be
// rolled back by the caller.
func (l *Ledger) RecomputeTx(ctx context.Context, tx repositories.Tx, shelterIDs ...entities.ShelterID) ([]*entities.Shelter, error) {
	ids := uniqueShelterIDs(shelterIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	if err := tx.LockShelters(ctx, ids...); err != nil {
		return nil, err
	}
	fulfilled, err := tx.ListRequests(ctx, repositories.RequestFilter{
		Statuses:   []entities.RequestStatus{entities.RequestFulfilled},
		ShelterIDs: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list fulfilled requests: %w", err)
	}

	occupancy, err := l.occupancyByShelter(ctx, tx, fulfilled)
	if err != nil {
		return nil, err
	}

	var (
		updated   []*entities.Shelter
		failedIDs []string
		failures  []error
	)
	now := l.now().UTC()

	for _, id := range ids {
		shelter, err := tx.GetShelter(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load shelter %s: %w", id, err)
		}

		previous := shelter.CurrentOccupancy
		shelter.CurrentOccupancy = occupancy[id]
		if shelter.Status != entities.ShelterClosed {
			shelter.Status = l.thresholds.StatusFor(shelter.Utilization())
		}
		shelter.UpdatedAt = now

		if err := tx.SaveShelter(ctx, shelter); err != nil {
			failedIDs = append(failedIDs, string(id))
			failures = append(failures, err)
			continue
		}

		l.logger.V(logging.DEBUG).Info("Recomputed shelter capacity",
			"shelter", id,
			"previousOccupancy", previous,
			"occupancy", shelter.CurrentOccupancy,
			"capacity", shelter.Capacity,
			"status", shelter.Status.String())
		updated = append(updated, shelter)
	}

	if len(failedIDs) > 0 {
		l.metrics.ObserveRecompute(len(ids), true)
		err := domainerrors.PersistenceFailure(errors.Join(failures...), failedIDs...)
		l.logger.Error(err, "Capacity recompute failed", "failedShelters", failedIDs)
		return nil, err
	}

	l.metrics.ObserveRecompute(len(updated), false)
	return updated, nil
}

// occupancyByShelter sums Fulfilled Occupancy-type requests per shelter
func (l *Ledger) occupancyByShelter(ctx context.Context, tx repositories.Tx, fulfilled []*entities.Request) (map[entities.ShelterID]entities.Quantity, error) {
	occupancy := make(map[entities.ShelterID]entities.Quantity)
	resourceTypes := make(map[entities.ResourceID]entities.ResourceType)

	for _, req := range fulfilled {
		resourceType, ok := resourceTypes[req.ResourceID]
		if !ok {
			resource, err := tx.GetResource(ctx, req.ResourceID)
			if err != nil {
				return nil, fmt.Errorf("failed to load resource %s for request %s: %w", req.ResourceID, req.ID, err)
			}
			resourceType = resource.Type
			resourceTypes[req.ResourceID] = resourceType
		}
		if resourceType == entities.Occupancy {
			occupancy[req.ShelterID] += req.QuantityRequested
		}
	}
	return occupancy, nil
}

func uniqueShelterIDs(ids []entities.ShelterID) []entities.ShelterID {
	seen := make(map[entities.ShelterID]bool, len(ids))
	unique := make([]entities.ShelterID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool {
		return unique[i] < unique[j]
	})
	return unique
}
