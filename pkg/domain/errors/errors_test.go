package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("execute: %w", StockConflict("res-1", 10, 5))

	assert.True(t, stderrors.Is(err, ErrStockConflict))
	assert.False(t, stderrors.Is(err, ErrAlreadyTerminal))
	assert.True(t, IsStockConflict(err))
	assert.Equal(t, CodeStockConflict, CodeOf(err))
}

func TestError_Message(t *testing.T) {
	err := StockConflict("res-1", 10, 5)
	assert.Equal(t, "STOCK_CONFLICT: requested 10 but only 5 in stock [res-1]", err.Error())

	cause := stderrors.New("disk full")
	pf := PersistenceFailure(cause, "shelter-a", "shelter-b")
	assert.Equal(t, "PERSISTENCE_FAILURE: failed to persist [shelter-a, shelter-b]: disk full", pf.Error())
	assert.ErrorIs(t, pf, cause)
}

func TestError_Classification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		validation  bool
		retryable   bool
		persistence bool
	}{
		{"invalid input", Validation("quantity must be positive"), true, false, false},
		{"unknown reference", NotFound("shelter", "s-1"), true, false, false},
		{"stock conflict", StockConflict("r-1", 3, 1), false, true, false},
		{"already terminal", AlreadyTerminal("q-1", "Rejected"), false, false, false},
		{"persistence", PersistenceFailure(stderrors.New("boom"), "s-1"), false, false, true},
		{"plain error", stderrors.New("plain"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.persistence, IsPersistenceFailure(tt.err))

			var e *Error
			if stderrors.As(tt.err, &e) {
				assert.Equal(t, tt.retryable, e.Retryable())
			}
		})
	}
}

func TestFailedIDs(t *testing.T) {
	err := fmt.Errorf("recompute: %w", PersistenceFailure(stderrors.New("x"), "a", "b"))
	assert.Equal(t, []string{"a", "b"}, FailedIDs(err))
	assert.Nil(t, FailedIDs(stderrors.New("x")))
}
