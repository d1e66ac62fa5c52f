package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
)

func TestNewRequest_Validation(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	req, err := NewRequest("S1", "R1", 10, PriorityHigh, now)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, RequestPending, req.Status)
	assert.Equal(t, Quantity(10), req.Outstanding())

	testCases := []struct {
		name     string
		shelter  ShelterID
		resource ResourceID
		quantity Quantity
		priority Priority
	}{
		{"zero quantity", "S1", "R1", 0, PriorityLow},
		{"negative quantity", "S1", "R1", -3, PriorityLow},
		{"missing shelter", "", "R1", 1, PriorityLow},
		{"missing resource", "S1", "", 1, PriorityLow},
		{"priority too low", "S1", "R1", 1, 0},
		{"priority too high", "S1", "R1", 1, 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRequest(tc.shelter, tc.resource, tc.quantity, tc.priority, now)
			require.Error(t, err)
			assert.True(t, domainerrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestRequest_FulfillPartialThenFull(t *testing.T) {
	req := &Request{ID: "Q1", ShelterID: "S1", ResourceID: "R1", QuantityRequested: 10, Priority: PriorityHigh}

	require.NoError(t, req.Fulfill(4, "first truck"))
	assert.Equal(t, RequestApproved, req.Status)
	assert.Equal(t, Quantity(6), req.Outstanding())

	err := req.Fulfill(7, "")
	assert.True(t, domainerrors.IsValidation(err))

	require.NoError(t, req.Fulfill(6, "second truck"))
	assert.Equal(t, RequestFulfilled, req.Status)
	assert.Equal(t, Quantity(0), req.Outstanding())
	assert.Equal(t, []string{"first truck", "second truck"}, req.Comments)

	err = req.Fulfill(1, "")
	assert.True(t, domainerrors.IsAlreadyTerminal(err))
}

func TestRequest_RejectIsTerminal(t *testing.T) {
	req := &Request{ID: "Q1", QuantityRequested: 5, Priority: PriorityLow}

	require.NoError(t, req.Reject("duplicate"))
	assert.Equal(t, RequestRejected, req.Status)

	err := req.Reject("again")
	assert.True(t, domainerrors.IsAlreadyTerminal(err))
	assert.Equal(t, []string{"duplicate"}, req.Comments)
}

func TestRequest_CloneIsDeep(t *testing.T) {
	req := &Request{ID: "Q1", Comments: []string{"a"}}
	c := req.Clone()
	c.Comments[0] = "b"
	assert.Equal(t, "a", req.Comments[0])
}

func TestParsePriority(t *testing.T) {
	testCases := []struct {
		in       string
		expected Priority
		wantErr  bool
	}{
		{"5", PriorityCritical, false},
		{"critical", PriorityCritical, false},
		{"Low", PriorityLow, false},
		{" 3 ", PriorityHigh, false},
		{"0", 0, true},
		{"extreme", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePriority(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestResource_IsCritical(t *testing.T) {
	testCases := []struct {
		name      string
		stock     Quantity
		threshold Quantity
		critical  bool
		headroom  Quantity
	}{
		{"above threshold", 20, 10, false, 10},
		{"at threshold", 10, 10, true, 0},
		{"below threshold", 3, 10, true, -7},
		{"empty with zero threshold", 0, 0, true, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewResource("R1", "", "Water", Water, tc.stock, tc.threshold)
			require.NoError(t, err)
			assert.Equal(t, tc.critical, r.IsCritical())
			assert.Equal(t, tc.headroom, r.Headroom())
		})
	}
}

func TestVariantFor(t *testing.T) {
	assert.Equal(t, VariantCritical, VariantFor(PriorityCritical))
	assert.Equal(t, VariantWarning, VariantFor(PriorityUrgent))
	assert.Equal(t, VariantInfo, VariantFor(PriorityHigh))
	assert.Equal(t, VariantNeutral, VariantFor(PriorityMedium))
	assert.Equal(t, VariantNeutral, VariantFor(PriorityLow))
}

func TestScope_Includes(t *testing.T) {
	assert.True(t, AllScopes().Includes("D1"))
	assert.True(t, ForDisaster("D1").Includes("D1"))
	assert.True(t, ForDisaster("D1").Includes(""))
	assert.False(t, ForDisaster("D1").Includes("D2"))
}
