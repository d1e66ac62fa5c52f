// Package allocation applies approved recommendations to the store.
//
// Every operation is one short transaction: the stock re-check, the stock
// decrement, the request status change and the shelter capacity recompute
// commit together or not at all. Recommendations are advisory, so the stock
// available at execution time is the only thing that decides whether an
// allocation goes through.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/vsinha/relief/pkg/application/services/capacity"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/events"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/metrics"
)

// Config holds the executor's dependencies
type Config struct {
	Logger    logr.Logger
	Metrics   *metrics.Recorder
	Publisher *events.Publisher
}

// Executor mutates requests and inventory
type Executor struct {
	store     repositories.Store
	ledger    *capacity.Ledger
	logger    logr.Logger
	metrics   *metrics.Recorder
	publisher *events.Publisher
}

// Result describes a committed allocation
type Result struct {
	Request   *entities.Request
	Resource  *entities.Resource
	Shelters  []*entities.Shelter
	Allocated entities.Quantity
	Message   string
}

// NewExecutor creates an executor. The ledger must share the executor's store.
func NewExecutor(store repositories.Store, ledger *capacity.Ledger, cfg Config) *Executor {
	return &Executor{
		store:     store,
		ledger:    ledger,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
	}
}

// Execute allocates quantity units to the request. It fails with a
// StockConflict if the resource holds less than quantity at execution time,
// and with AlreadyTerminal if the request was fulfilled or rejected first.
// Nothing is written on failure.
func (e *Executor) Execute(ctx context.Context, requestID entities.RequestID, quantity entities.Quantity, comments string) (*Result, error) {
	if quantity <= 0 {
		err := domainerrors.Validation("approved quantity must be positive, got %d", quantity)
		e.observeFailure(requestID, err)
		return nil, err
	}
	return e.execute(ctx, requestID, func(*entities.Request) entities.Quantity { return quantity }, comments)
}

// Approve executes the request's full outstanding quantity. The outstanding
// quantity is read inside the transaction, so a partial execution that
// commits first only shrinks what Approve allocates.
func (e *Executor) Approve(ctx context.Context, requestID entities.RequestID) (*Result, error) {
	return e.execute(ctx, requestID, (*entities.Request).Outstanding, "Approved in full")
}

func (e *Executor) execute(
	ctx context.Context,
	requestID entities.RequestID,
	quantityFor func(*entities.Request) entities.Quantity,
	comments string,
) (*Result, error) {
	var (
		result      *Result
		wasCritical bool
	)
	err := e.store.Atomic(ctx, func(tx repositories.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			return domainerrors.AlreadyTerminal(string(req.ID), req.Status.String())
		}
		quantity := quantityFor(req)
		if quantity <= 0 {
			return domainerrors.Validation("approved quantity must be positive, got %d", quantity)
		}
		if quantity > req.Outstanding() {
			return domainerrors.Validation("approved quantity %d exceeds outstanding quantity %d", quantity, req.Outstanding())
		}

		resource, err := tx.GetResource(ctx, req.ResourceID)
		if err != nil {
			return fmt.Errorf("failed to load resource for request %s: %w", req.ID, err)
		}
		if quantity > resource.StockLevel {
			return domainerrors.StockConflict(string(resource.ID), int64(quantity), int64(resource.StockLevel))
		}

		wasCritical = resource.IsCritical()
		resource.StockLevel -= quantity
		if err := req.Fulfill(quantity, executionComment(quantity, resource, comments)); err != nil {
			return err
		}

		if err := tx.SaveResource(ctx, resource); err != nil {
			return saveError(err, "resource", string(resource.ID))
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return saveError(err, "request", string(req.ID))
		}

		shelters, err := e.ledger.RecomputeTx(ctx, tx, req.ShelterID)
		if err != nil {
			return err
		}

		result = &Result{
			Request:   req,
			Resource:  resource,
			Shelters:  shelters,
			Allocated: quantity,
		}
		return nil
	})
	if err != nil {
		err = e.resolveStale(ctx, requestID, err)
		e.observeFailure(requestID, err)
		return nil, err
	}

	result.Message = allocationMessage(result)
	e.publishAllocation(result, wasCritical)

	outcome := metrics.OutcomeFulfilled
	if result.Request.Status != entities.RequestFulfilled {
		outcome = metrics.OutcomePartial
	}
	e.metrics.ObserveExecution(outcome)
	e.metrics.ObserveAllocated(result.Resource.Type.String(), int64(result.Allocated))

	e.logger.Info("Executed allocation",
		"request", requestID,
		"resource", result.Resource.ID,
		"quantity", result.Allocated,
		"status", result.Request.Status.String(),
		"stockRemaining", result.Resource.StockLevel)
	return result, nil
}

// Reject moves the request to Rejected. Rejection touches neither stock nor
// shelter occupancy. A reject that loses a version race is retried once
// against the fresh request, since no stock check can have gone stale.
func (e *Executor) Reject(ctx context.Context, requestID entities.RequestID, reason string) (*entities.Request, error) {
	var rejected *entities.Request
	reject := func(tx repositories.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := req.Reject(reason); err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return saveError(err, "request", string(req.ID))
		}
		rejected = req
		return nil
	}
	err := e.store.Atomic(ctx, reject)
	if errors.Is(err, repositories.ErrStaleWrite) {
		e.logger.V(logging.DEBUG).Info("Retrying reject after concurrent update", "request", requestID)
		err = e.store.Atomic(ctx, reject)
	}
	if err != nil {
		err = e.resolveStale(ctx, requestID, err)
		e.observeFailure(requestID, err)
		return nil, err
	}

	e.publisher.Publish(events.RequestRejectedEvent, string(rejected.ID), events.RequestRejected{
		Request: *rejected,
		Reason:  reason,
	})
	e.metrics.ObserveExecution(metrics.OutcomeRejected)
	e.logger.Info("Rejected request", "request", requestID, "reason", reason)
	return rejected, nil
}

// resolveStale turns an optimistic version failure into the condition the
// caller can act on. A request that another actor finished is reported as
// AlreadyTerminal; any other lost race means stock moved underneath us.
func (e *Executor) resolveStale(ctx context.Context, requestID entities.RequestID, err error) error {
	if !errors.Is(err, repositories.ErrStaleWrite) {
		return err
	}
	current, getErr := e.store.GetRequest(ctx, requestID)
	if getErr == nil && current.Status.IsTerminal() {
		return domainerrors.AlreadyTerminal(string(current.ID), current.Status.String())
	}
	var staleResource *staleWrite
	if errors.As(err, &staleResource) && staleResource.entity == "resource" {
		return &domainerrors.Error{
			Code:      domainerrors.CodeStockConflict,
			Message:   "stock changed during execution",
			EntityIDs: []string{staleResource.id},
			Err:       err,
		}
	}
	return &domainerrors.Error{
		Code:      domainerrors.CodeStockConflict,
		Message:   "request changed during execution",
		EntityIDs: []string{string(requestID)},
		Err:       err,
	}
}

func (e *Executor) observeFailure(requestID entities.RequestID, err error) {
	outcome := metrics.OutcomeError
	switch {
	case domainerrors.IsValidation(err):
		outcome = metrics.OutcomeInvalid
	case domainerrors.IsStockConflict(err):
		outcome = metrics.OutcomeStockConflict
	case domainerrors.IsAlreadyTerminal(err):
		outcome = metrics.OutcomeAlreadyTerminal
	}
	e.metrics.ObserveExecution(outcome)

	if outcome == metrics.OutcomeError {
		e.logger.Error(err, "Allocation failed", "request", requestID)
		return
	}
	e.logger.V(logging.DEBUG).Info("Allocation refused", "request", requestID, "reason", err.Error())
}

func (e *Executor) publishAllocation(result *Result, wasCritical bool) {
	eventType := events.RequestApprovedEvent
	if result.Request.Status == entities.RequestFulfilled {
		eventType = events.RequestFulfilledEvent
	}
	e.publisher.Publish(eventType, string(result.Request.ID), events.RequestAllocated{
		Request:        *result.Request,
		Quantity:       result.Allocated,
		StockRemaining: result.Resource.StockLevel,
	})
	e.publisher.PublishCapacity(result.Shelters)

	if !wasCritical && result.Resource.IsCritical() {
		e.publisher.Publish(events.ResourceCriticalEvent, string(result.Resource.ID), events.ResourceCritical{
			Resource: *result.Resource,
		})
	}
}

// staleWrite records which save lost an optimistic version check
type staleWrite struct {
	entity string
	id     string
}

func (s *staleWrite) Error() string {
	return fmt.Sprintf("%s %s: %s", s.entity, s.id, repositories.ErrStaleWrite)
}

func (s *staleWrite) Unwrap() error {
	return repositories.ErrStaleWrite
}

func saveError(err error, entity, id string) error {
	if errors.Is(err, repositories.ErrStaleWrite) {
		return &staleWrite{entity: entity, id: id}
	}
	if domainerrors.CodeOf(err) != "" {
		return err
	}
	return domainerrors.PersistenceFailure(err, id)
}

func executionComment(quantity entities.Quantity, resource *entities.Resource, comments string) string {
	entry := fmt.Sprintf("Allocated %d %s of %s", quantity, unitOf(resource), resource.Name)
	if comments = strings.TrimSpace(comments); comments != "" {
		entry += ": " + comments
	}
	return entry
}

func allocationMessage(r *Result) string {
	base := fmt.Sprintf("Allocated %d %s of %s to request %s",
		r.Allocated, unitOf(r.Resource), r.Resource.Name, r.Request.ID)
	if r.Request.Status == entities.RequestFulfilled {
		return base + "; request fulfilled"
	}
	return fmt.Sprintf("%s; request approved with %d still outstanding", base, r.Request.Outstanding())
}

func unitOf(resource *entities.Resource) string {
	if resource.Unit == "" {
		return "units"
	}
	return resource.Unit
}
