/*
balance.go - Balance materialization and the reconciler

PURPOSE:
  Two components share this file because they share one aggregate:

  Ledger      - answers "what is the balance for (employee, type, year)?",
                lazily creating the row on first reference and refreshing
                the derived entitlement (accrual to date, carry-over
                expiry) on every read.
  Reconciler  - the ONLY writer of UsedDays/PendingDays. Every mutation
                is reserve, commit, or release, applied as a CAS on the
                row version.

OWNERSHIP:
  UI and API code never touch balance counters. The lifecycle calls the
  reconciler; the reconciler calls the store. A mutation that would break
  used + pending <= entitlement is rejected, never clamped.

LAZY MATERIALIZATION:
  A balance row is created on first reference, seeded with the carry-over
  grant computed from the prior year's remaining days. Concurrent first
  references race on CreateBalance; the loser re-reads the winner's row.

SEE ALSO:
  - accrual.go: entitlement arithmetic
  - lifecycle.go: the caller driving reserve/commit/release
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Balance reads and lazy materialization
// =============================================================================

// Ledger materializes and serves balance rows. It does not mutate
// used/pending counters; that is the Reconciler's job.
type Ledger struct {
	balances  BalanceStore
	types     TypeStore
	employees EmployeeStore

	// Clock is injectable for tests; defaults to Today.
	Clock func() Date
}

func NewLedger(balances BalanceStore, types TypeStore, employees EmployeeStore) *Ledger {
	return &Ledger{balances: balances, types: types, employees: employees, Clock: Today}
}

func (l *Ledger) today() Date {
	if l.Clock != nil {
		return l.Clock()
	}
	return Today()
}

// EntitlementFor computes the effective entitlement for an employee,
// type and year as of a date, without touching stored counters.
func (l *Ledger) EntitlementFor(ctx context.Context, employeeID EmployeeID, typeID LeaveTypeID, year int, asOf Date) (decimal.Decimal, error) {
	t, err := l.types.GetType(ctx, typeID)
	if err != nil {
		return decimal.Zero, err
	}
	emp, err := l.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}

	carry, err := l.carryOverFor(ctx, t, emp, year)
	if err != nil {
		return decimal.Zero, err
	}
	return EffectiveEntitlement(t, emp.HireDate, year, carry, asOf), nil
}

// BalanceFor returns the balance row for the key, creating it on first
// reference. The returned row's TotalEntitlement is refreshed against
// the registry rules as of today, so carry-over expiry shows up on the
// next read after the window closes.
func (l *Ledger) BalanceFor(ctx context.Context, key BalanceKey) (*LeaveBalance, error) {
	t, err := l.types.GetType(ctx, key.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	emp, err := l.employees.GetEmployee(ctx, key.EmployeeID)
	if err != nil {
		return nil, err
	}

	asOf := ClampToYear(l.today(), key.Year)

	row, err := l.balances.GetBalance(ctx, key)
	switch {
	case errors.Is(err, ErrBalanceNotFound):
		row, err = l.materialize(ctx, t, emp, key, asOf)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, transient("load balance", err)
	}

	row.TotalEntitlement = EffectiveEntitlement(t, emp.HireDate, key.Year, row.CarryOverDays, asOf)
	return row, nil
}

func (l *Ledger) materialize(ctx context.Context, t *LeaveType, emp *Employee, key BalanceKey, asOf Date) (*LeaveBalance, error) {
	carry, err := l.carryOverFor(ctx, t, emp, key.Year)
	if err != nil {
		return nil, err
	}

	row := LeaveBalance{
		Key:           key,
		CarryOverDays: carry,
		UsedDays:      decimal.Zero,
		PendingDays:   decimal.Zero,
		Version:       1,
		UpdatedAt:     asOf.Time(),
	}
	row.TotalEntitlement = EffectiveEntitlement(t, emp.HireDate, key.Year, carry, asOf)

	err = l.balances.CreateBalance(ctx, row)
	if errors.Is(err, ErrBalanceExists) {
		// Lost the materialization race; the winner's row is authoritative.
		existing, gerr := l.balances.GetBalance(ctx, key)
		if gerr != nil {
			return nil, transient("reload balance", gerr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, transient("create balance", err)
	}
	return &row, nil
}

// carryOverFor computes the capped carry-over grant from the prior
// year's remaining days. History chains only through materialized rows:
// a prior year nobody ever touched contributes its full entitlement.
func (l *Ledger) carryOverFor(ctx context.Context, t *LeaveType, emp *Employee, year int) (decimal.Decimal, error) {
	if !t.CarryOver.Enabled {
		return decimal.Zero, nil
	}

	priorYear := year - 1
	if emp.HireDate.Year() > priorYear {
		return decimal.Zero, nil
	}

	priorEnd := EndOfYear(priorYear)
	prior, err := l.balances.GetBalance(ctx, BalanceKey{
		EmployeeID:  emp.ID,
		LeaveTypeID: t.ID,
		Year:        priorYear,
	})
	switch {
	case errors.Is(err, ErrBalanceNotFound):
		// Nothing was ever used or reserved that year.
		remaining := EffectiveEntitlement(t, emp.HireDate, priorYear, decimal.Zero, priorEnd)
		return CarryOverGrant(t, remaining), nil
	case err != nil:
		return decimal.Zero, transient("load prior balance", err)
	}

	entitlement := EffectiveEntitlement(t, emp.HireDate, priorYear, prior.CarryOverDays, priorEnd)
	remaining := entitlement.Sub(prior.UsedDays).Sub(prior.PendingDays)
	return CarryOverGrant(t, remaining), nil
}

// =============================================================================
// RECONCILER - Sole writer of used/pending days
// =============================================================================

// Reconciler applies balance mutations in response to request lifecycle
// transitions. Each mutation is a compare-and-swap on the row version;
// callers retry ErrVersionConflict with a freshly loaded row.
type Reconciler struct {
	balances BalanceStore

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewReconciler(balances BalanceStore) *Reconciler {
	return &Reconciler{balances: balances, Clock: time.Now}
}

// Reserve holds days for a pending request: pendingDays += days.
// Rejected with InsufficientBalanceError when the hold would break
// used + pending <= entitlement.
func (rc *Reconciler) Reserve(ctx context.Context, b *LeaveBalance, days decimal.Decimal) error {
	next := *b
	next.PendingDays = next.PendingDays.Add(days)
	if !next.checkInvariant() {
		return &InsufficientBalanceError{
			EmployeeID:  b.Key.EmployeeID,
			LeaveTypeID: b.Key.LeaveTypeID,
			Year:        b.Key.Year,
			Requested:   days,
			Remaining:   b.Remaining(),
		}
	}
	return rc.apply(ctx, b, next)
}

// Commit converts a reservation into consumption:
// pendingDays -= days, usedDays += days.
func (rc *Reconciler) Commit(ctx context.Context, b *LeaveBalance, days decimal.Decimal) error {
	next := *b
	next.PendingDays = next.PendingDays.Sub(days)
	next.UsedDays = next.UsedDays.Add(days)
	if next.PendingDays.IsNegative() {
		return fmt.Errorf("commit of %s days would drive pendingDays negative on %v", days, b.Key)
	}
	return rc.apply(ctx, b, next)
}

// Release drops a reservation without consuming: pendingDays -= days.
// Reserve followed by Release returns pendingDays to its prior value
// exactly.
func (rc *Reconciler) Release(ctx context.Context, b *LeaveBalance, days decimal.Decimal) error {
	next := *b
	next.PendingDays = next.PendingDays.Sub(days)
	if next.PendingDays.IsNegative() {
		return fmt.Errorf("release of %s days would drive pendingDays negative on %v", days, b.Key)
	}
	return rc.apply(ctx, b, next)
}

func (rc *Reconciler) apply(ctx context.Context, b *LeaveBalance, next LeaveBalance) error {
	next.UpdatedAt = rc.now()
	if err := rc.balances.UpdateBalance(ctx, next); err != nil {
		return err
	}
	next.Version++
	*b = next
	return nil
}

func (rc *Reconciler) now() time.Time {
	if rc.Clock != nil {
		return rc.Clock().UTC()
	}
	return time.Now().UTC()
}
