// Package dashboard is the pull-based facade presentation clients call.
// Reads return the derived views; actions never return an error and instead
// report the outcome as an ActionResult with an operator-facing message.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/application/services/allocation"
	"github.com/vsinha/relief/pkg/application/services/inventory"
	"github.com/vsinha/relief/pkg/application/services/queue"
	"github.com/vsinha/relief/pkg/application/services/recommendation"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
)

// Service coordinates the inventory view, request queue, recommendation
// engine and allocation executor behind one API
type Service struct {
	store     repositories.Reader
	inventory *inventory.View
	queue     *queue.Queue
	engine    *recommendation.Engine
	executor  *allocation.Executor
	logger    logr.Logger
	now       func() time.Time
}

// NewService creates a new dashboard service
func NewService(
	store repositories.Reader,
	engine *recommendation.Engine,
	executor *allocation.Executor,
	logger logr.Logger,
) *Service {
	return &Service{
		store:     store,
		inventory: inventory.NewView(store),
		queue:     queue.NewQueue(store),
		engine:    engine,
		executor:  executor,
		logger:    logger,
		now:       time.Now,
	}
}

// GetCriticalResources returns resources at or below their minimum, most depleted first
func (s *Service) GetCriticalResources(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	return s.inventory.ListCritical(ctx, scope)
}

// GetShelterCapacity returns every shelter in scope with its utilization
func (s *Service) GetShelterCapacity(ctx context.Context, scope entities.Scope) ([]dto.ShelterCapacity, error) {
	shelters, err := s.store.ListShelters(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list shelters: %w", err)
	}
	out := make([]dto.ShelterCapacity, 0, len(shelters))
	for _, sh := range shelters {
		out = append(out, dto.NewShelterCapacity(sh))
	}
	return out, nil
}

// GetPendingRequests returns open requests, highest priority first
func (s *Service) GetPendingRequests(ctx context.Context, scope entities.Scope) ([]entities.RequestView, error) {
	return s.queue.ListPending(ctx, scope)
}

// GetResourceRecommendations returns the current allocation plan
func (s *Service) GetResourceRecommendations(ctx context.Context, scope entities.Scope) ([]entities.Recommendation, error) {
	return s.engine.Generate(ctx, scope)
}

// GetDisasterSummary aggregates shelters, open requests and critical
// resources. The three reads run concurrently.
func (s *Service) GetDisasterSummary(ctx context.Context, scope entities.Scope) (*dto.DisasterSummary, error) {
	summary := &dto.DisasterSummary{
		SheltersByStatus: make(map[string]int),
		GeneratedAt:      s.now().UTC(),
	}

	if scope.DisasterID != "" {
		disaster, err := s.store.GetDisaster(ctx, scope.DisasterID)
		if err != nil {
			return nil, err
		}
		summary.Disaster = disaster
	}

	var (
		shelters []*entities.Shelter
		pending  []*entities.Request
		critical []*entities.Resource
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shelters, err = s.store.ListShelters(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.store.ListRequests(gctx, repositories.RequestFilter{
			Scope:    scope,
			Statuses: repositories.OpenStatuses,
		})
		return err
	})
	g.Go(func() error {
		var err error
		critical, err = s.inventory.ListCritical(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build disaster summary: %w", err)
	}

	summary.ShelterCount = len(shelters)
	for _, sh := range shelters {
		summary.TotalCapacity += sh.Capacity
		summary.TotalOccupancy += sh.CurrentOccupancy
		summary.SheltersByStatus[sh.Status.String()]++
	}
	summary.Utilization = decimal.Zero
	if summary.TotalCapacity > 0 {
		summary.Utilization = decimal.NewFromInt(int64(summary.TotalOccupancy)).
			Div(decimal.NewFromInt(int64(summary.TotalCapacity)))
	}
	summary.PendingRequests = len(pending)
	summary.CriticalResources = len(critical)
	return summary, nil
}

// ApproveRequest allocates the request's full outstanding quantity
func (s *Service) ApproveRequest(ctx context.Context, requestID entities.RequestID) dto.ActionResult {
	result, err := s.executor.Approve(ctx, requestID)
	if err != nil {
		return s.failure(requestID, err)
	}
	return dto.ActionResult{Success: true, Message: result.Message, Request: result.Request}
}

// ExecuteRecommendation allocates quantity units to the request
func (s *Service) ExecuteRecommendation(ctx context.Context, requestID entities.RequestID, quantity entities.Quantity, comments string) dto.ActionResult {
	result, err := s.executor.Execute(ctx, requestID, quantity, comments)
	if err != nil {
		return s.failure(requestID, err)
	}
	return dto.ActionResult{Success: true, Message: result.Message, Request: result.Request}
}

// RejectRequest rejects the request
func (s *Service) RejectRequest(ctx context.Context, requestID entities.RequestID, reason string) dto.ActionResult {
	req, err := s.executor.Reject(ctx, requestID, reason)
	if err != nil {
		return s.failure(requestID, err)
	}
	return dto.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Request %s rejected", requestID),
		Request: req,
	}
}

func (s *Service) failure(requestID entities.RequestID, err error) dto.ActionResult {
	result := dto.ActionResult{Code: domainerrors.CodeOf(err)}

	switch {
	case domainerrors.IsStockConflict(err):
		result.Retryable = true
		result.Message = fmt.Sprintf("Stock changed before request %s could be filled: %s. Refresh and retry with a smaller quantity.",
			requestID, messageOf(err))
	case domainerrors.IsAlreadyTerminal(err):
		result.Message = fmt.Sprintf("Request %s was already completed: %s.", requestID, messageOf(err))
	case domainerrors.IsNotFound(err):
		result.Message = fmt.Sprintf("Request %s could not be processed: %s.", requestID, missingOf(err))
	case domainerrors.IsValidation(err):
		result.Message = fmt.Sprintf("Request %s was not changed: %s.", requestID, messageOf(err))
	case domainerrors.IsPersistenceFailure(err):
		result.Message = fmt.Sprintf("Could not save changes for %v; nothing was applied.", domainerrors.FailedIDs(err))
	default:
		result.Message = "Unexpected error: " + err.Error()
	}

	if result.Code == "" || result.Code == domainerrors.CodePersistence {
		s.logger.Error(err, "Dashboard action failed", "request", requestID)
	} else {
		s.logger.Info("Dashboard action refused", "request", requestID, "code", result.Code)
	}
	return result
}

// missingOf names the record that was not found, which is not always the
// request itself
func missingOf(err error) string {
	if ids := domainerrors.FailedIDs(err); len(ids) > 0 {
		return fmt.Sprintf("%s (%s)", messageOf(err), strings.Join(ids, ", "))
	}
	return messageOf(err)
}

func messageOf(err error) string {
	var derr *domainerrors.Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return err.Error()
}
