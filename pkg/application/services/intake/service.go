// Package intake records requests arriving from the field.
//
// Shelter occupancy is derived from requests, so every insert, update and
// delete recomputes the affected shelters in the same transaction. An
// update that moves a request between shelters recomputes both.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/application/services/capacity"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/domain/services"
	"github.com/vsinha/relief/pkg/infrastructure/events"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
)

// Config holds the service's dependencies
type Config struct {
	Logger    logr.Logger
	Publisher *events.Publisher
	// Now stamps requests created without a RequestedAt; defaults to time.Now
	Now func() time.Time
}

// Service creates, updates and deletes requests
type Service struct {
	store     repositories.Store
	ledger    *capacity.Ledger
	logger    logr.Logger
	publisher *events.Publisher
	now       func() time.Time
}

// Change is the outcome of an intake write
type Change struct {
	Request  *entities.Request   `json:"request"`
	Shelters []*entities.Shelter `json:"shelters"`
}

// NewService creates an intake service. The ledger must share the service's store.
func NewService(store repositories.Store, ledger *capacity.Ledger, cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		ledger:    ledger,
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
		now:       now,
	}
}

// Create stores a new request. A blank ID is assigned, a zero RequestedAt
// is stamped with the current time, and a zero Status means Pending.
func (s *Service) Create(ctx context.Context, req *entities.Request) (*Change, error) {
	req = req.Clone()
	if req.ID == "" {
		req.ID = entities.NewRequestID()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.now().UTC()
	}
	if req.Status == entities.RequestFulfilled && req.QuantityFulfilled == 0 {
		req.QuantityFulfilled = req.QuantityRequested
	}
	req.Version = 0
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var change *Change
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		if _, err := tx.GetRequest(ctx, req.ID); err == nil {
			return domainerrors.Validation("request %s already exists", req.ID)
		} else if !domainerrors.IsNotFound(err) {
			return err
		}
		if err := checkReferences(ctx, tx, req); err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return err
		}
		shelters, err := s.ledger.RecomputeTx(ctx, tx, req.ShelterID)
		if err != nil {
			return err
		}
		change = &Change{Request: req, Shelters: shelters}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.RequestCreatedEvent, string(req.ID), events.RequestCreated{Request: *req})
	s.publisher.PublishCapacity(change.Shelters)
	s.logger.V(logging.DEBUG).Info("Created request",
		"request", req.ID, "shelter", req.ShelterID, "resource", req.ResourceID,
		"quantity", req.QuantityRequested, "priority", req.Priority.String())
	return change, nil
}

// Update replaces the shelter, resource, quantity and priority of an open
// request. Terminal requests are immutable, and a request that already holds
// allocated stock keeps its shelter and resource. Lowering the quantity to
// what has been allocated fulfils the request.
func (s *Service) Update(ctx context.Context, req *entities.Request) (*Change, error) {
	var (
		change *Change
		old    *entities.Request
	)
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		current, err := tx.GetRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return domainerrors.AlreadyTerminal(string(current.ID), current.Status.String())
		}
		old = current.Clone()

		if current.QuantityFulfilled > 0 && (req.ShelterID != current.ShelterID || req.ResourceID != current.ResourceID) {
			return domainerrors.Validation("request %s has %d units allocated; its shelter and resource cannot change",
				current.ID, current.QuantityFulfilled)
		}
		current.ShelterID = req.ShelterID
		current.ResourceID = req.ResourceID
		current.QuantityRequested = req.QuantityRequested
		current.Priority = req.Priority
		if err := current.Validate(); err != nil {
			return err
		}
		if current.QuantityFulfilled > 0 && current.QuantityFulfilled == current.QuantityRequested {
			current.Status = entities.RequestFulfilled
		}
		if err := checkReferences(ctx, tx, current); err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, current); err != nil {
			return err
		}
		shelters, err := s.ledger.RecomputeTx(ctx, tx, old.ShelterID, current.ShelterID)
		if err != nil {
			return err
		}
		change = &Change{Request: current, Shelters: shelters}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.RequestUpdatedEvent, string(req.ID), events.RequestUpdated{
		OldRequest: *old,
		NewRequest: *change.Request,
	})
	s.publisher.PublishCapacity(change.Shelters)
	s.logger.V(logging.DEBUG).Info("Updated request", "request", req.ID)
	return change, nil
}

// Delete removes a request and recomputes its shelter
func (s *Service) Delete(ctx context.Context, id entities.RequestID) (*Change, error) {
	var change *Change
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteRequest(ctx, id); err != nil {
			return err
		}
		shelters, err := s.ledger.RecomputeTx(ctx, tx, req.ShelterID)
		if err != nil {
			return err
		}
		change = &Change{Request: req, Shelters: shelters}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.RequestDeletedEvent, string(id), events.RequestDeleted{Request: *change.Request})
	s.publisher.PublishCapacity(change.Shelters)
	s.logger.V(logging.DEBUG).Info("Deleted request", "request", id)
	return change, nil
}

// Import writes a scenario in one transaction and recomputes every shelter
// it touches. Existing records with the same IDs are replaced; requests
// keep the status they were imported with.
func (s *Service) Import(ctx context.Context, scenario *dto.Scenario) ([]*entities.Shelter, error) {
	check := services.NewScenarioValidator().Validate(
		scenario.Disasters, scenario.Shelters, scenario.Resources, scenario.Requests)
	if err := check.Err(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if len(check.UnknownDisasters) > 0 {
		s.logger.V(logging.DEBUG).Info("Scenario references disasters defined elsewhere",
			"disasters", check.UnknownDisasters)
	}

	var shelters []*entities.Shelter
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		for _, d := range scenario.Disasters {
			if err := tx.SaveDisaster(ctx, d); err != nil {
				return err
			}
		}

		touched := make([]entities.ShelterID, 0, len(scenario.Shelters))
		for _, sh := range scenario.Shelters {
			if err := tx.SaveShelter(ctx, sh); err != nil {
				return err
			}
			touched = append(touched, sh.ID)
		}
		for _, r := range scenario.Resources {
			if err := syncVersion(ctx, tx, r); err != nil {
				return err
			}
			if err := tx.SaveResource(ctx, r); err != nil {
				return err
			}
		}
		for _, req := range scenario.Requests {
			if err := req.Validate(); err != nil {
				return err
			}
			if err := checkReferences(ctx, tx, req); err != nil {
				return err
			}
			if existing, err := tx.GetRequest(ctx, req.ID); err == nil {
				req.Version = existing.Version
			}
			if err := tx.SaveRequest(ctx, req); err != nil {
				return err
			}
			touched = append(touched, req.ShelterID)
		}

		var err error
		shelters, err = s.ledger.RecomputeTx(ctx, tx, touched...)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishCapacity(shelters)
	s.logger.Info("Imported scenario",
		"disasters", len(scenario.Disasters),
		"shelters", len(scenario.Shelters),
		"resources", len(scenario.Resources),
		"requests", len(scenario.Requests))
	return shelters, nil
}

// syncVersion lets an import overwrite a resource that already exists
func syncVersion(ctx context.Context, tx repositories.Tx, r *entities.Resource) error {
	existing, err := tx.GetResource(ctx, r.ID)
	if domainerrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	r.Version = existing.Version
	return nil
}

func checkReferences(ctx context.Context, tx repositories.Tx, req *entities.Request) error {
	shelter, err := tx.GetShelter(ctx, req.ShelterID)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.ID, err)
	}
	resource, err := tx.GetResource(ctx, req.ResourceID)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.ID, err)
	}
	if !services.Serves(resource, shelter) {
		return domainerrors.Validation("request %s: resource %s is reserved for disaster %s, shelter %s is in %s",
			req.ID, resource.ID, resource.DisasterID, shelter.ID, shelter.DisasterID)
	}
	return nil
}
