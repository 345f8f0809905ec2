/*
errors.go - Centralized error taxonomy for the leave workflow

PURPOSE:
  All error types in one place. Callers branch on four categories:

  1. ValidationError          - malformed or missing input, caller's fault
  2. InsufficientBalanceError - business rule violation, terminal for that
                                submission
  3. InvalidStateError        - stale state transition attempt, caller
                                should re-fetch and decide
  4. TransientError           - infrastructure hiccup, safe to retry

  Structured errors carry enough context (field, leave type, remaining
  days) for a UI to explain the failure without a second round-trip.

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) { ... }

  var verr *leave.ValidationError
  if errors.As(err, &verr) { highlight(verr.Field) }
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrTransient           = errors.New("transient failure")

	// ErrVersionConflict is returned by stores when an optimistic write
	// loses the version race. Services retry it; exhausted retries surface
	// to callers as a TransientError.
	ErrVersionConflict = errors.New("concurrent modification detected")

	// ErrStaleStatus is returned by stores when a status compare-and-swap
	// finds the request no longer in the expected state.
	ErrStaleStatus = errors.New("request status changed concurrently")

	ErrBalanceExists = errors.New("balance row already exists")

	// ErrRequestExists is returned by stores when an insert collides with
	// an existing request id or (employee, idempotency key) pair.
	ErrRequestExists = errors.New("request already exists")

	ErrTypeNotFound     = errors.New("leave type not found")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrRequestNotFound  = errors.New("request not found")
	ErrBalanceNotFound  = errors.New("balance not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry context for the caller
// =============================================================================

// ValidationError reports which field was rejected and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientBalanceError reports a balance shortage at submission time.
type InsufficientBalanceError struct {
	EmployeeID    EmployeeID
	LeaveTypeID   LeaveTypeID
	LeaveTypeName string
	Year          int
	Requested     decimal.Decimal
	Remaining     decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %d: requested %s days, %s remaining",
		e.LeaveTypeName, e.Year, e.Requested, e.Remaining)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError reports an attempted transition out of a state that
// does not allow it. Terminal requests never transition again.
type InvalidStateError struct {
	RequestID RequestID
	Current   RequestStatus
	Attempted RequestStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("request %s is %s, cannot transition to %s",
		e.RequestID, e.Current, e.Attempted)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// TransientError wraps an infrastructure failure the caller may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return ErrTransient }

func transient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrVersionConflict)
}

// IsClientError returns true if the error is the caller's fault rather
// than an infrastructure problem.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTypeNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrBalanceNotFound)
}
