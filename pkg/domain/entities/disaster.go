package entities

import (
	"fmt"
	"strings"
	"time"

	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

// DisasterID identifies a disaster operation
type DisasterID string

// DisasterStatus represents the lifecycle of a disaster operation
type DisasterStatus int

const (
	DisasterActive DisasterStatus = iota
	DisasterContained
	DisasterClosed
)

// String method for DisasterStatus enum
func (s DisasterStatus) String() string {
	switch s {
	case DisasterActive:
		return "Active"
	case DisasterContained:
		return "Contained"
	case DisasterClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name
func (s DisasterStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DisasterStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseDisasterStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseDisasterStatus parses the name produced by String
func ParseDisasterStatus(s string) (DisasterStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "":
		return DisasterActive, nil
	case "contained":
		return DisasterContained, nil
	case "closed":
		return DisasterClosed, nil
	default:
		return 0, fmt.Errorf("unknown disaster status %q", s)
	}
}

// Disaster is the operation that shelters and resources are scoped to
type Disaster struct {
	ID        DisasterID     `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Severity  int            `json:"severity"`
	Status    DisasterStatus `json:"status"`
	StartedAt time.Time      `json:"started_at"`
}

// NewDisaster creates a validated Disaster
func NewDisaster(id DisasterID, name, disasterType string, severity int, startedAt time.Time) (*Disaster, error) {
	if id == "" {
		return nil, domainerrors.Validation("disaster id cannot be empty")
	}
	if name == "" {
		return nil, domainerrors.Validation("disaster name cannot be empty")
	}
	if severity < 1 || severity > 5 {
		return nil, domainerrors.Validation("disaster severity must be between 1 and 5, got %d", severity)
	}

	return &Disaster{
		ID:        id,
		Name:      name,
		Type:      disasterType,
		Severity:  severity,
		Status:    DisasterActive,
		StartedAt: startedAt,
	}, nil
}

// Clone returns a copy safe to mutate
func (d *Disaster) Clone() *Disaster {
	c := *d
	return &c
}
