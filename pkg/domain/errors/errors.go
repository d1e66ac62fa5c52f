// Package errors defines the error taxonomy shared by the relief services.
// Every failure surfaced to a caller carries an ErrorCode so the presentation
// layer can pick a message without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a class of failure. Codes are strings so they read
// well in logs and serialize naturally to JSON.
type ErrorCode string

const (
	// CodeInvalidInput indicates malformed input, such as a non-positive quantity.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a reference to an entity that does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeStockConflict indicates an allocation exceeded the stock available at execution time.
	CodeStockConflict ErrorCode = "STOCK_CONFLICT"

	// CodeAlreadyTerminal indicates the request was already fulfilled or rejected.
	CodeAlreadyTerminal ErrorCode = "ALREADY_TERMINAL"

	// CodePersistence indicates a store write failed.
	CodePersistence ErrorCode = "PERSISTENCE_FAILURE"
)

// Error is the concrete error type returned by the relief services.
type Error struct {
	Code    ErrorCode
	Message string
	// EntityIDs names the records the failure applies to. For persistence
	// failures this is the exact set of records that could not be written.
	EntityIDs []string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.EntityIDs) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.EntityIDs, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels such as
// ErrStockConflict work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the caller may re-fetch state and try again.
func (e *Error) Retryable() bool {
	return e.Code == CodeStockConflict
}

// Sentinels for errors.Is.
var (
	ErrValidation      = &Error{Code: CodeInvalidInput}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrStockConflict   = &Error{Code: CodeStockConflict}
	ErrAlreadyTerminal = &Error{Code: CodeAlreadyTerminal}
	ErrPersistence     = &Error{Code: CodePersistence}
)

// Validation returns a CodeInvalidInput error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a CodeNotFound error for the given entity kind and ID.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:      CodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		EntityIDs: []string{id},
	}
}

// StockConflict reports that requested exceeds the stock available on resourceID.
func StockConflict(resourceID string, requested, available int64) *Error {
	return &Error{
		Code:      CodeStockConflict,
		Message:   fmt.Sprintf("requested %d but only %d in stock", requested, available),
		EntityIDs: []string{resourceID},
	}
}

// AlreadyTerminal reports that requestID is already in the given terminal status.
func AlreadyTerminal(requestID, status string) *Error {
	return &Error{
		Code:      CodeAlreadyTerminal,
		Message:   fmt.Sprintf("request is already %s", status),
		EntityIDs: []string{requestID},
	}
}

// PersistenceFailure wraps a store error together with the IDs that failed to persist.
func PersistenceFailure(err error, entityIDs ...string) *Error {
	return &Error{
		Code:      CodePersistence,
		Message:   "failed to persist",
		EntityIDs: entityIDs,
		Err:       err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FailedIDs returns the entity IDs attached to the first *Error in err's chain.
func FailedIDs(err error) []string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.EntityIDs
	}
	return nil
}

// IsValidation reports whether err was rejected before any mutation,
// either as malformed input or as a reference to an unknown entity.
func IsValidation(err error) bool {
	code := CodeOf(err)
	return code == CodeInvalidInput || code == CodeNotFound
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func IsStockConflict(err error) bool {
	return CodeOf(err) == CodeStockConflict
}

func IsAlreadyTerminal(err error) bool {
	return CodeOf(err) == CodeAlreadyTerminal
}

func IsPersistenceFailure(err error) bool {
	return CodeOf(err) == CodePersistence
}
