// Package inventory provides read-only views over resource stock.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/domain/repositories"
)

// View answers stock questions without mutating anything
type View struct {
	store repositories.Reader
}

// NewView creates an inventory view over store
func NewView(store repositories.Reader) *View {
	return &View{store: store}
}

// List returns every resource in scope ordered by ID
func (v *View) List(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	resources, err := v.store.ListResources(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

// ListCritical returns resources at or below their minimum threshold, most
// critical first: ordered by stock minus threshold ascending, so resources
// already below threshold come before those exactly at it.
func (v *View) ListCritical(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	resources, err := v.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	critical := make([]*entities.Resource, 0, len(resources))
	for _, r := range resources {
		if r.IsCritical() {
			critical = append(critical, r)
		}
	}
	SortByHeadroom(critical)
	return critical, nil
}

// SortByHeadroom orders resources by stock minus threshold ascending, then ID
func SortByHeadroom(resources []*entities.Resource) {
	sort.SliceStable(resources, func(i, j int) bool {
		hi, hj := resources[i].Headroom(), resources[j].Headroom()
		if hi != hj {
			return hi < hj
		}
		return resources[i].ID < resources[j].ID
	})
}
