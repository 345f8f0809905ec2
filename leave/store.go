/*
store.go - Persistence interfaces for the leave workflow

PURPOSE:
  Defines the contract between the workflow services and the database.
  The workflow needs nothing more than point reads/writes keyed by
  (employee, leave type, year) and by request id, plus filtered listings.
  No range scans across aggregates, no joins.

CONCURRENCY CONTRACT:
  UpdateBalance is a compare-and-swap: the store persists the row only if
  the stored version equals the caller's LeaveBalance.Version, and bumps
  the version by one. A lost race returns ErrVersionConflict.

  UpdateRequestStatus is a compare-and-swap on status: the transition
  applies only if the request is still in the expected state, otherwise
  ErrStaleStatus. This guarantees exactly one settle path wins a
  concurrent approve/reject/cancel race.

IMPLEMENTATIONS:
  - leave/store: in-memory, for tests and development
  - store/sqlite: SQLite
  - store/postgres: PostgreSQL via pgx
*/
package leave

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// TypeStore persists leave-type configuration.
type TypeStore interface {
	// SaveType inserts or replaces a leave type.
	SaveType(ctx context.Context, t LeaveType) error

	// GetType returns a leave type, or ErrTypeNotFound.
	GetType(ctx context.Context, id LeaveTypeID) (*LeaveType, error)

	// ListTypes returns all leave types, active and inactive.
	ListTypes(ctx context.Context) ([]LeaveType, error)
}

// EmployeeStore persists the employee directory records the workflow
// needs for accrual tenure and request denormalization.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error

	// GetEmployee returns an employee, or ErrEmployeeNotFound.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	ListEmployees(ctx context.Context) ([]Employee, error)
}

// BalanceStore persists balance rows with per-row optimistic versioning.
type BalanceStore interface {
	// GetBalance returns the row for the key, or ErrBalanceNotFound.
	GetBalance(ctx context.Context, key BalanceKey) (*LeaveBalance, error)

	// CreateBalance inserts a new row with Version 1. Returns
	// ErrBalanceExists if the key is already materialized, so concurrent
	// lazy materialization converges on a single row.
	CreateBalance(ctx context.Context, b LeaveBalance) error

	// UpdateBalance persists b only if the stored version equals
	// b.Version, then increments the version. Returns ErrVersionConflict
	// on a lost race, ErrBalanceNotFound if the row is missing.
	UpdateBalance(ctx context.Context, b LeaveBalance) error

	// ListBalances returns rows for one employee (or all employees when
	// employeeID is empty) in the given year.
	ListBalances(ctx context.Context, employeeID EmployeeID, year int) ([]LeaveBalance, error)
}

// RequestFilter narrows request listings. Nil/zero fields match
// everything. From/To select requests whose date range overlaps
// [From, To].
type RequestFilter struct {
	EmployeeID  EmployeeID
	Status      RequestStatus
	LeaveTypeID LeaveTypeID
	From        *Date
	To          *Date
}

// RequestStore persists leave requests.
type RequestStore interface {
	// CreateRequest inserts a new request.
	CreateRequest(ctx context.Context, r LeaveRequest) error

	// GetRequest returns a request, or ErrRequestNotFound.
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// GetRequestByKey returns the request previously submitted with the
	// given idempotency key, or ErrRequestNotFound.
	GetRequestByKey(ctx context.Context, employeeID EmployeeID, idempotencyKey string) (*LeaveRequest, error)

	// UpdateRequestStatus transitions id from 'from' to 'to', recording
	// the resolution. Returns ErrStaleStatus if the request is no longer
	// in 'from', ErrRequestNotFound if it does not exist.
	UpdateRequestStatus(ctx context.Context, id RequestID, from, to RequestStatus, res Resolution) error

	// ListRequests returns requests matching the filter, newest first.
	ListRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error)
}

// Store bundles everything a full deployment persists.
type Store interface {
	TypeStore
	EmployeeStore
	BalanceStore
	RequestStore
}
