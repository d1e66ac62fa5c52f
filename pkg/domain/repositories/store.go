package repositories

import (
	"context"
	"errors"

	"github.com/vsinha/relief/pkg/domain/entities"
)

// ErrStaleWrite is returned by a Save when the stored record's version no
// longer matches the version the caller read.
var ErrStaleWrite = errors.New("record was modified concurrently")

// RequestFilter selects requests. Empty fields do not filter.
type RequestFilter struct {
	Scope      entities.Scope
	Statuses   []entities.RequestStatus
	ShelterIDs []entities.ShelterID
	ResourceID entities.ResourceID
}

// Matches reports whether req passes the status, shelter and resource filters.
// Scope is checked by the store, which knows each shelter's disaster.
func (f RequestFilter) Matches(req *entities.Request) bool {
	if f.ResourceID != "" && req.ResourceID != f.ResourceID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if req.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.ShelterIDs) > 0 {
		found := false
		for _, id := range f.ShelterIDs {
			if req.ShelterID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// OpenStatuses are the statuses of requests still awaiting allocation
var OpenStatuses = []entities.RequestStatus{entities.RequestPending, entities.RequestApproved}

// Reader provides read access to relief records. Returned entities are
// copies; mutating them does not change the store.
type Reader interface {
	GetDisaster(ctx context.Context, id entities.DisasterID) (*entities.Disaster, error)
	ListDisasters(ctx context.Context) ([]*entities.Disaster, error)

	GetShelter(ctx context.Context, id entities.ShelterID) (*entities.Shelter, error)
	ListShelters(ctx context.Context, scope entities.Scope) ([]*entities.Shelter, error)

	GetResource(ctx context.Context, id entities.ResourceID) (*entities.Resource, error)
	ListResources(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error)

	GetRequest(ctx context.Context, id entities.RequestID) (*entities.Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]*entities.Request, error)
}

// Writer mutates relief records. Saves of resources and requests are
// version-checked and return ErrStaleWrite on mismatch; on success the
// passed entity's Version is advanced.
type Writer interface {
	SaveDisaster(ctx context.Context, disaster *entities.Disaster) error
	SaveShelter(ctx context.Context, shelter *entities.Shelter) error
	SaveResource(ctx context.Context, resource *entities.Resource) error
	SaveRequest(ctx context.Context, request *entities.Request) error
	DeleteRequest(ctx context.Context, id entities.RequestID) error
}

// Tx is a unit of work against the store
type Tx interface {
	Reader
	Writer

	// LockShelters holds the given shelters against concurrent recomputes
	// until the transaction ends. Shelter saves are not version-checked, so
	// a recompute locks its shelters before reading the request ledger.
	LockShelters(ctx context.Context, ids ...entities.ShelterID) error
}

// Store is the data store the relief services run against. All writes go
// through Atomic: either every write made by fn commits, or none does.
type Store interface {
	Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
