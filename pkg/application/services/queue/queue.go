// Package queue lists the open requests awaiting allocation.
package queue

import (
	"context"
	"fmt"
	"sort"

	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/domain/repositories"
)

// Queue resolves open requests together with their shelter and resource
type Queue struct {
	store repositories.Reader
}

// NewQueue creates a request queue over store
func NewQueue(store repositories.Reader) *Queue {
	return &Queue{store: store}
}

// ListPending returns Pending and Approved requests in scope, joined with
// their shelter and resource, highest priority first and oldest first
// within a priority.
func (q *Queue) ListPending(ctx context.Context, scope entities.Scope) ([]entities.RequestView, error) {
	views, err := q.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	SortByPriority(views)
	return views, nil
}

// load reads the open requests and resolves each reference once
func (q *Queue) load(ctx context.Context, scope entities.Scope) ([]entities.RequestView, error) {
	requests, err := q.store.ListRequests(ctx, repositories.RequestFilter{
		Scope:    scope,
		Statuses: repositories.OpenStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list open requests: %w", err)
	}
	if len(requests) == 0 {
		return []entities.RequestView{}, nil
	}

	shelters, err := q.shelters(ctx, scope)
	if err != nil {
		return nil, err
	}
	resources, err := q.resources(ctx, scope)
	if err != nil {
		return nil, err
	}

	views := make([]entities.RequestView, 0, len(requests))
	for _, req := range requests {
		shelter, ok := shelters[req.ShelterID]
		if !ok {
			shelter, err = q.store.GetShelter(ctx, req.ShelterID)
			if err != nil {
				return nil, fmt.Errorf("request %s: %w", req.ID, err)
			}
			shelters[shelter.ID] = shelter
		}
		resource, ok := resources[req.ResourceID]
		if !ok {
			// Resources tagged to another disaster can still be requested
			resource, err = q.store.GetResource(ctx, req.ResourceID)
			if err != nil {
				return nil, fmt.Errorf("request %s: %w", req.ID, err)
			}
			resources[resource.ID] = resource
		}
		views = append(views, entities.RequestView{
			Request:  req,
			Shelter:  shelter,
			Resource: resource,
		})
	}
	return views, nil
}

func (q *Queue) shelters(ctx context.Context, scope entities.Scope) (map[entities.ShelterID]*entities.Shelter, error) {
	list, err := q.store.ListShelters(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list shelters: %w", err)
	}
	byID := make(map[entities.ShelterID]*entities.Shelter, len(list))
	for _, sh := range list {
		byID[sh.ID] = sh
	}
	return byID, nil
}

func (q *Queue) resources(ctx context.Context, scope entities.Scope) (map[entities.ResourceID]*entities.Resource, error) {
	list, err := q.store.ListResources(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	byID := make(map[entities.ResourceID]*entities.Resource, len(list))
	for _, r := range list {
		byID[r.ID] = r
	}
	return byID, nil
}

// SortByPriority orders views by priority descending, then request time
// ascending (first come, first served), then ID for determinism.
func SortByPriority(views []entities.RequestView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].Request, views[j].Request
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.ID < b.ID
	})
}
