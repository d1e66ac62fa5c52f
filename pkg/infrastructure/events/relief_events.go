package events

import (
	"github.com/go-logr/logr"

	"github.com/vsinha/relief/pkg/domain/entities"
)

const (
	RequestCreatedEvent   = "request.created"
	RequestUpdatedEvent   = "request.updated"
	RequestDeletedEvent   = "request.deleted"
	RequestApprovedEvent  = "request.approved"
	RequestFulfilledEvent = "request.fulfilled"
	RequestRejectedEvent  = "request.rejected"

	CapacityRecomputedEvent = "shelter.capacity.recomputed"
	ResourceCriticalEvent   = "resource.critical"
)

// AllEventTypes lists every event type published by the relief services
var AllEventTypes = []string{
	RequestCreatedEvent,
	RequestUpdatedEvent,
	RequestDeletedEvent,
	RequestApprovedEvent,
	RequestFulfilledEvent,
	RequestRejectedEvent,
	CapacityRecomputedEvent,
	ResourceCriticalEvent,
}

type RequestCreated struct {
	Request entities.Request `json:"request"`
}

type RequestUpdated struct {
	OldRequest entities.Request `json:"old_request"`
	NewRequest entities.Request `json:"new_request"`
}

type RequestDeleted struct {
	Request entities.Request `json:"request"`
}

// RequestAllocated is the payload of both approved (partial) and fulfilled events
type RequestAllocated struct {
	Request        entities.Request  `json:"request"`
	Quantity       entities.Quantity `json:"quantity"`
	StockRemaining entities.Quantity `json:"stock_remaining"`
}

type RequestRejected struct {
	Request entities.Request `json:"request"`
	Reason  string           `json:"reason"`
}

type CapacityRecomputed struct {
	Shelter entities.Shelter `json:"shelter"`
}

type ResourceCritical struct {
	Resource entities.Resource `json:"resource"`
}

// Publisher appends events after a transaction commits. A nil store is
// allowed and drops everything. The event log is an audit trail, so a
// failed append is logged rather than returned.
type Publisher struct {
	store  EventStore
	logger logr.Logger
}

func NewPublisher(store EventStore, logger logr.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

func (p *Publisher) Publish(eventType, streamID string, data interface{}) {
	if p == nil || p.store == nil {
		return
	}
	if err := p.store.AppendEvent(streamID, NewEvent(eventType, streamID, data)); err != nil {
		p.logger.Error(err, "failed to append event", "type", eventType, "stream", streamID)
	}
}

// PublishCapacity emits one recomputed event per shelter
func (p *Publisher) PublishCapacity(shelters []*entities.Shelter) {
	for _, sh := range shelters {
		p.Publish(CapacityRecomputedEvent, string(sh.ID), CapacityRecomputed{Shelter: *sh})
	}
}
