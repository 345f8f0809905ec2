/*
Package leave implements the leave management workflow: leave-type
configuration, per-employee balance accounting, and the request lifecycle
from submission to a terminal state.

KEY CONCEPTS:
  - LeaveType: the HR-configured ruleset for a category of leave
    (entitlement cap, accrual, carry-over, approval requirements)
  - LeaveRequest: a single request with an explicit status state machine
    (pending -> approved | rejected | cancelled)
  - LeaveBalance: the owned aggregate per (employee, leave type, year);
    the only shared mutable state, guarded by optimistic versioning
  - Reconciler: the sole writer of used/pending days, routed through
    reserve/commit/release

DESIGN PRINCIPLES:
  1. Precision: day amounts use decimal.Decimal so fractional monthly
     accrual never suffers floating-point drift; rounding happens only
     at the display edge
  2. Exclusive ownership: the lifecycle writes request status, the
     reconciler writes balance counters, the registry writes policy
     fields; nothing else mutates another component's rows
  3. Optimistic concurrency: every balance mutation is a compare-and-swap
     on the row version, retried a bounded number of times

SEE ALSO:
  - registry.go: leave-type configuration and validation
  - balance.go: balance materialization and the reconciler
  - lifecycle.go: submission and approval state machine
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LeaveTypeID string
type RequestID string
type EmployeeID string

// =============================================================================
// LEAVE TYPE - Configuration for one category of leave
// =============================================================================

// CarryOverRules control how unused days survive a year rollover.
// When enabled, unused days up to MaxCarryOverDays transfer into the next
// year and stop counting ExpiryMonths after the rollover date.
// ExpiryMonths <= 0 means carried days never expire.
type CarryOverRules struct {
	Enabled          bool
	MaxCarryOverDays float64
	ExpiryMonths     int
}

// AccrualRules control incremental entitlement. When enabled, entitlement
// accumulates at AccrualRate days per month of tenure instead of being
// granted in full at year start. Accrual begins StartAccrualAfterMonths
// after the hire date and never exceeds MaxAccrualDays.
type AccrualRules struct {
	Enabled                 bool
	AccrualRate             float64 // days per month
	MaxAccrualDays          float64
	StartAccrualAfterMonths int
}

// LeaveType is the configured policy for one category of leave.
// Policy fields are owned by the Registry; deactivation blocks new
// requests but leaves history and existing balances untouched.
type LeaveType struct {
	ID          LeaveTypeID
	Name        string
	Description string
	Color       string // presentation only

	MaxDaysPerYear        float64
	RequiresApproval      bool
	RequiresDocumentation bool

	CarryOver CarryOverRules
	Accrual   AccrualRules

	// Empty slices mean the type applies to everyone.
	ApplicableRoles       []string
	ApplicableDepartments []string

	IsActive  bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppliesTo reports whether the type is in scope for the given role and
// department. Empty scope lists match everything.
func (t *LeaveType) AppliesTo(role, department string) bool {
	return matchesScope(t.ApplicableRoles, role) && matchesScope(t.ApplicableDepartments, department)
}

func matchesScope(scope []string, value string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		if s == value {
			return true
		}
	}
	return false
}

// =============================================================================
// EMPLOYEE - Directory record used for accrual tenure and denormalization
// =============================================================================

// Employee is the minimal directory record the workflow needs: the hire
// date gates tenure-based accrual, and name/department are snapshotted
// onto requests at submission time. Values originate from the identity
// provider and are trusted as given.
type Employee struct {
	ID         EmployeeID
	Name       string
	Email      string
	Department string
	Role       string
	HireDate   Date
	CreatedAt  time.Time
}

// =============================================================================
// LEAVE REQUEST - One request through the status state machine
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

// LeaveRequest is a request for a contiguous, inclusive date range.
//
// EmployeeName, Department and LeaveTypeName are snapshots taken at
// submission time. Later renames of the employee or the leave type do NOT
// propagate to historical requests: the staleness is intentional, the
// record shows what was true when the request was made.
type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID

	EmployeeName string
	Department   string

	LeaveTypeID   LeaveTypeID
	LeaveTypeName string

	StartDate Date
	EndDate   Date
	TotalDays int // inclusive whole-day count, always >= 1

	Reason               string
	Urgency              UrgencyLevel
	BusinessImpact       string
	CoverageArrangements string

	Status RequestStatus

	SubmittedAt    time.Time
	ResolvedBy     string
	ResolvedAt     *time.Time
	ResolutionNote string

	// Optional client-supplied token. Resubmitting the same key returns the
	// original request instead of creating a second one.
	IdempotencyKey string
}

// Resolution records who settled a request and why.
type Resolution struct {
	By   string
	At   time.Time
	Note string
}

// =============================================================================
// LEAVE BALANCE - The per-(employee, type, year) aggregate
// =============================================================================

// BalanceKey identifies one balance row.
type BalanceKey struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int
}

// LeaveBalance is the owned aggregate for one employee, leave type and
// year. UsedDays and PendingDays are written only by the Reconciler.
// TotalEntitlement and CarryOverDays are derived from registry rules on
// every read, so a carry-over window that has since expired is reflected
// retroactively in Remaining.
//
// Version is the optimistic concurrency token: a store rejects any write
// whose Version does not match the current row.
type LeaveBalance struct {
	Key BalanceKey

	TotalEntitlement decimal.Decimal
	UsedDays         decimal.Decimal
	PendingDays      decimal.Decimal
	CarryOverDays    decimal.Decimal

	Version   int
	UpdatedAt time.Time
}

// Remaining returns entitlement minus used and pending days.
func (b LeaveBalance) Remaining() decimal.Decimal {
	return b.TotalEntitlement.Sub(b.UsedDays).Sub(b.PendingDays)
}

// CanReserve reports whether the balance can absorb the given number of
// days without going negative.
func (b LeaveBalance) CanReserve(days decimal.Decimal) bool {
	return !b.Remaining().Sub(days).IsNegative()
}

// checkInvariant verifies used + pending <= entitlement.
func (b LeaveBalance) checkInvariant() bool {
	return !b.UsedDays.Add(b.PendingDays).GreaterThan(b.TotalEntitlement)
}

// Days converts a whole-day count to a decimal amount.
func Days(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// DaysFromFloat converts a fractional day amount to a decimal.
func DaysFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
