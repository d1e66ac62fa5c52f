package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/domain/repositories"
)

// WriteFault lets tests fail individual writes. entity is one of
// "disaster", "shelter", "resource", "request".
type WriteFault func(entity, id string) error

// Option configures a Store
type Option func(*Store)

// WithWriteFault installs a hook consulted before every write
func WithWriteFault(fault WriteFault) Option {
	return func(s *Store) {
		s.fault = fault
	}
}

// Store provides in-memory storage for relief records. Transactions are
// serialized and run against a private copy that replaces the committed
// state only when the transaction succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
	fault WriteFault
}

// NewStore creates a new empty in-memory store
func NewStore(opts ...Option) *Store {
	s := &Store{state: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

// Load inserts records directly, bypassing version checks. Intended for
// seeding from scenario files.
func (s *Store) Load(
	disasters []*entities.Disaster,
	shelters []*entities.Shelter,
	resources []*entities.Resource,
	requests []*entities.Request,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range disasters {
		s.state.disasters[d.ID] = d.Clone()
	}
	for _, sh := range shelters {
		s.state.shelters[sh.ID] = sh.Clone()
	}
	for _, r := range resources {
		s.state.resources[r.ID] = r.Clone()
	}
	for _, req := range requests {
		s.state.requests[req.ID] = req.Clone()
	}
}

// Atomic runs fn in a serialized transaction
func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{state: work, fault: s.fault}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) reader() *tx {
	return &tx{state: s.state}
}

func (s *Store) GetDisaster(ctx context.Context, id entities.DisasterID) (*entities.Disaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetDisaster(ctx, id)
}

func (s *Store) ListDisasters(ctx context.Context) ([]*entities.Disaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListDisasters(ctx)
}

func (s *Store) GetShelter(ctx context.Context, id entities.ShelterID) (*entities.Shelter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetShelter(ctx, id)
}

func (s *Store) ListShelters(ctx context.Context, scope entities.Scope) ([]*entities.Shelter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListShelters(ctx, scope)
}

func (s *Store) GetResource(ctx context.Context, id entities.ResourceID) (*entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetResource(ctx, id)
}

func (s *Store) ListResources(ctx context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListResources(ctx, scope)
}

func (s *Store) GetRequest(ctx context.Context, id entities.RequestID) (*entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, filter repositories.RequestFilter) ([]*entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListRequests(ctx, filter)
}

type state struct {
	disasters map[entities.DisasterID]*entities.Disaster
	shelters  map[entities.ShelterID]*entities.Shelter
	resources map[entities.ResourceID]*entities.Resource
	requests  map[entities.RequestID]*entities.Request
}

func newState() *state {
	return &state{
		disasters: make(map[entities.DisasterID]*entities.Disaster),
		shelters:  make(map[entities.ShelterID]*entities.Shelter),
		resources: make(map[entities.ResourceID]*entities.Resource),
		requests:  make(map[entities.RequestID]*entities.Request),
	}
}

// clone copies the maps; the records themselves are never mutated in place,
// so sharing pointers between the copies is safe.
func (st *state) clone() *state {
	c := &state{
		disasters: make(map[entities.DisasterID]*entities.Disaster, len(st.disasters)),
		shelters:  make(map[entities.ShelterID]*entities.Shelter, len(st.shelters)),
		resources: make(map[entities.ResourceID]*entities.Resource, len(st.resources)),
		requests:  make(map[entities.RequestID]*entities.Request, len(st.requests)),
	}
	for k, v := range st.disasters {
		c.disasters[k] = v
	}
	for k, v := range st.shelters {
		c.shelters[k] = v
	}
	for k, v := range st.resources {
		c.resources[k] = v
	}
	for k, v := range st.requests {
		c.requests[k] = v
	}
	return c
}

// tx reads and writes a single state. Records are cloned on the way in and
// out so callers never alias stored values.
type tx struct {
	state *state
	fault WriteFault
}

var _ repositories.Tx = (*tx)(nil)

func (t *tx) checkFault(entity, id string) error {
	if t.fault == nil {
		return nil
	}
	if err := t.fault(entity, id); err != nil {
		return domainerrors.PersistenceFailure(err, id)
	}
	return nil
}

func (t *tx) GetDisaster(_ context.Context, id entities.DisasterID) (*entities.Disaster, error) {
	d, ok := t.state.disasters[id]
	if !ok {
		return nil, domainerrors.NotFound("disaster", string(id))
	}
	return d.Clone(), nil
}

func (t *tx) ListDisasters(_ context.Context) ([]*entities.Disaster, error) {
	disasters := make([]*entities.Disaster, 0, len(t.state.disasters))
	for _, d := range t.state.disasters {
		disasters = append(disasters, d.Clone())
	}
	sort.Slice(disasters, func(i, j int) bool {
		return disasters[i].ID < disasters[j].ID
	})
	return disasters, nil
}

func (t *tx) GetShelter(_ context.Context, id entities.ShelterID) (*entities.Shelter, error) {
	sh, ok := t.state.shelters[id]
	if !ok {
		return nil, domainerrors.NotFound("shelter", string(id))
	}
	return sh.Clone(), nil
}

func (t *tx) ListShelters(_ context.Context, scope entities.Scope) ([]*entities.Shelter, error) {
	var shelters []*entities.Shelter
	for _, sh := range t.state.shelters {
		if scope.Includes(sh.DisasterID) {
			shelters = append(shelters, sh.Clone())
		}
	}
	sort.Slice(shelters, func(i, j int) bool {
		return shelters[i].ID < shelters[j].ID
	})
	return shelters, nil
}

func (t *tx) GetResource(_ context.Context, id entities.ResourceID) (*entities.Resource, error) {
	r, ok := t.state.resources[id]
	if !ok {
		return nil, domainerrors.NotFound("resource", string(id))
	}
	return r.Clone(), nil
}

func (t *tx) ListResources(_ context.Context, scope entities.Scope) ([]*entities.Resource, error) {
	var resources []*entities.Resource
	for _, r := range t.state.resources {
		if scope.Includes(r.DisasterID) {
			resources = append(resources, r.Clone())
		}
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].ID < resources[j].ID
	})
	return resources, nil
}

func (t *tx) GetRequest(_ context.Context, id entities.RequestID) (*entities.Request, error) {
	req, ok := t.state.requests[id]
	if !ok {
		return nil, domainerrors.NotFound("request", string(id))
	}
	return req.Clone(), nil
}

// ListRequests returns matching requests oldest first (FIFO)
func (t *tx) ListRequests(_ context.Context, filter repositories.RequestFilter) ([]*entities.Request, error) {
	var requests []*entities.Request
	for _, req := range t.state.requests {
		if !filter.Matches(req) {
			continue
		}
		if filter.Scope.DisasterID != "" {
			sh, ok := t.state.shelters[req.ShelterID]
			if !ok || !filter.Scope.Includes(sh.DisasterID) {
				continue
			}
		}
		requests = append(requests, req.Clone())
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].RequestedAt.Equal(requests[j].RequestedAt) {
			return requests[i].RequestedAt.Before(requests[j].RequestedAt)
		}
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

func (t *tx) SaveDisaster(_ context.Context, d *entities.Disaster) error {
	if err := t.checkFault("disaster", string(d.ID)); err != nil {
		return err
	}
	t.state.disasters[d.ID] = d.Clone()
	return nil
}

// LockShelters is a no-op: Atomic already runs one transaction at a time
func (t *tx) LockShelters(context.Context, ...entities.ShelterID) error {
	return nil
}

func (t *tx) SaveShelter(_ context.Context, sh *entities.Shelter) error {
	if err := t.checkFault("shelter", string(sh.ID)); err != nil {
		return err
	}
	t.state.shelters[sh.ID] = sh.Clone()
	return nil
}

func (t *tx) SaveResource(_ context.Context, r *entities.Resource) error {
	if err := t.checkFault("resource", string(r.ID)); err != nil {
		return err
	}
	if existing, ok := t.state.resources[r.ID]; ok && existing.Version != r.Version {
		return repositories.ErrStaleWrite
	}
	r.Version++
	t.state.resources[r.ID] = r.Clone()
	return nil
}

func (t *tx) SaveRequest(_ context.Context, req *entities.Request) error {
	if err := t.checkFault("request", string(req.ID)); err != nil {
		return err
	}
	if existing, ok := t.state.requests[req.ID]; ok && existing.Version != req.Version {
		return repositories.ErrStaleWrite
	}
	req.Version++
	t.state.requests[req.ID] = req.Clone()
	return nil
}

func (t *tx) DeleteRequest(_ context.Context, id entities.RequestID) error {
	if err := t.checkFault("request", string(id)); err != nil {
		return err
	}
	if _, ok := t.state.requests[id]; !ok {
		return domainerrors.NotFound("request", string(id))
	}
	delete(t.state.requests, id)
	return nil
}
