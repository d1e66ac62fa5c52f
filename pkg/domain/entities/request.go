package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// RequestID identifies a resource request
type RequestID string

// NewRequestID generates a random request identifier
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// Priority is the field-assigned importance of a request, 1 (Low) to 5 (Critical)
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityUrgent   Priority = 4
	PriorityCritical Priority = 5
)

// String method for Priority enum
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is on the 1..5 scale
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// ParsePriority accepts either the numeric level or its name
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		p := Priority(n)
		if !p.Valid() {
			return 0, fmt.Errorf("priority must be between 1 and 5, got %d", n)
		}
		return p, nil
	}
	for p := PriorityLow; p <= PriorityCritical; p++ {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// RequestStatus represents a request's position in its lifecycle
type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestApproved
	RequestFulfilled
	RequestRejected
)

// String method for RequestStatus enum
func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "Pending"
	case RequestApproved:
		return "Approved"
	case RequestFulfilled:
		return "Fulfilled"
	case RequestRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name
func (s RequestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RequestStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseRequestStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further transition is allowed
func (s RequestStatus) IsTerminal() bool {
	return s == RequestFulfilled || s == RequestRejected
}

// IsOpen reports whether the request still awaits allocation
func (s RequestStatus) IsOpen() bool {
	return s == RequestPending || s == RequestApproved
}

// ParseRequestStatus parses the name produced by String
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "":
		return RequestPending, nil
	case "approved":
		return RequestApproved, nil
	case "fulfilled":
		return RequestFulfilled, nil
	case "rejected":
		return RequestRejected, nil
	default:
		return 0, fmt.Errorf("unknown request status %q", s)
	}
}

// Request is a shelter's demand for a quantity of one resource
type Request struct {
	ID                RequestID  `json:"id"`
	ShelterID         ShelterID  `json:"shelter_id"`
	ResourceID        ResourceID `json:"resource_id"`
	QuantityRequested Quantity   `json:"quantity_requested"`
	// QuantityFulfilled accumulates partial executions.
	QuantityFulfilled Quantity      `json:"quantity_fulfilled"`
	Priority          Priority      `json:"priority"`
	Status            RequestStatus `json:"status"`
	RequestedAt       time.Time     `json:"requested_at"`
	Comments          []string      `json:"comments,omitempty"`
	Version           int           `json:"version"`
}

// NewRequest creates a validated Pending request with a generated ID
func NewRequest(shelterID ShelterID, resourceID ResourceID, quantity Quantity, priority Priority, requestedAt time.Time) (*Request, error) {
	req := &Request{
		ID:                NewRequestID(),
		ShelterID:         shelterID,
		ResourceID:        resourceID,
		QuantityRequested: quantity,
		Priority:          priority,
		Status:            RequestPending,
		RequestedAt:       requestedAt,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks the fields an intake record must carry
func (r *Request) Validate() error {
	if r.ID == "" {
		return domainerrors.Validation("request id cannot be empty")
	}
	if r.ShelterID == "" {
		return domainerrors.Validation("request %s has no shelter", r.ID)
	}
	if r.ResourceID == "" {
		return domainerrors.Validation("request %s has no resource", r.ID)
	}
	if r.QuantityRequested <= 0 {
		return domainerrors.Validation("quantity requested must be positive, got %d", r.QuantityRequested)
	}
	if r.QuantityFulfilled < 0 || r.QuantityFulfilled > r.QuantityRequested {
		return domainerrors.Validation("quantity fulfilled %d outside 0..%d", r.QuantityFulfilled, r.QuantityRequested)
	}
	if !r.Priority.Valid() {
		return domainerrors.Validation("priority must be between 1 and 5, got %d", r.Priority)
	}
	return nil
}

// Outstanding returns the quantity still to be allocated
func (r *Request) Outstanding() Quantity {
	if r.Status.IsTerminal() {
		return 0
	}
	return r.QuantityRequested - r.QuantityFulfilled
}

// Fulfill records an allocation of quantity. The request becomes Fulfilled
// once the full requested quantity has been allocated, Approved otherwise.
func (r *Request) Fulfill(quantity Quantity, comment string) error {
	if r.Status.IsTerminal() {
		return domainerrors.AlreadyTerminal(string(r.ID), r.Status.String())
	}
	if quantity <= 0 {
		return domainerrors.Validation("approved quantity must be positive, got %d", quantity)
	}
	if quantity > r.Outstanding() {
		return domainerrors.Validation("approved quantity %d exceeds outstanding quantity %d", quantity, r.Outstanding())
	}

	r.QuantityFulfilled += quantity
	if r.QuantityFulfilled == r.QuantityRequested {
		r.Status = RequestFulfilled
	} else {
		r.Status = RequestApproved
	}
	r.addComment(comment)
	return nil
}

// Reject moves the request to the terminal Rejected status
func (r *Request) Reject(reason string) error {
	if r.Status.IsTerminal() {
		return domainerrors.AlreadyTerminal(string(r.ID), r.Status.String())
	}
	r.Status = RequestRejected
	r.addComment(reason)
	return nil
}

func (r *Request) addComment(comment string) {
	if comment = strings.TrimSpace(comment); comment != "" {
		r.Comments = append(r.Comments, comment)
	}
}

// Clone returns a deep copy safe to mutate
func (r *Request) Clone() *Request {
	c := *r
	if r.Comments != nil {
		c.Comments = append([]string(nil), r.Comments...)
	}
	return &c
}
