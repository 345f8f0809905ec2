package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LAZY MATERIALIZATION
// =============================================================================

func TestLedger_BalanceFor_MaterializesOnFirstRead(t *testing.T) {
	// GIVEN: An employee and a 25-day type with no stored balance row
	// WHEN: The balance is read for the first time
	// THEN: A row appears with the full entitlement and nothing consumed

	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))

	b := f.balance(t, "alice", "vacation", 2025)

	assert.True(t, b.TotalEntitlement.Equal(decimal.NewFromInt(25)), "got %s", b.TotalEntitlement)
	assert.True(t, b.UsedDays.IsZero())
	assert.True(t, b.PendingDays.IsZero())
	assert.Equal(t, 1, b.Version)

	// The row is now persisted; a second read returns the same row.
	again := f.balance(t, "alice", "vacation", 2025)
	assert.Equal(t, b.Version, again.Version)
}

func TestLedger_BalanceFor_UnknownTypeOrEmployee(t *testing.T) {
	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))

	_, err := f.ledger.BalanceFor(context.Background(), leave.BalanceKey{
		EmployeeID: "alice", LeaveTypeID: "nope", Year: 2025,
	})
	assert.ErrorIs(t, err, leave.ErrTypeNotFound)

	_, err = f.ledger.BalanceFor(context.Background(), leave.BalanceKey{
		EmployeeID: "ghost", LeaveTypeID: "vacation", Year: 2025,
	})
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}

// =============================================================================
// ENTITLEMENT QUERIES
// =============================================================================

func TestLedger_EntitlementFor(t *testing.T) {
	// GIVEN: A monthly-accrual type and an employee hired in January
	// WHEN: The effective entitlement is asked for at different dates
	// THEN: The answer tracks accrual without touching stored counters

	f := newFixture(t)
	f.seedType(t, leave.LeaveType{
		ID:             "vacation",
		Name:           "Vacation",
		MaxDaysPerYear: 24,
		Accrual: leave.AccrualRules{
			Enabled:        true,
			AccrualRate:    2,
			MaxAccrualDays: 24,
		},
	})
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2025, time.January, 1))
	ctx := context.Background()

	got, err := f.ledger.EntitlementFor(ctx, "alice", "vacation", 2025, date(2025, time.July, 1))
	require.NoError(t, err)
	assert.Equal(t, "12", got.String())

	got, err = f.ledger.EntitlementFor(ctx, "alice", "vacation", 2025, date(2026, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, "24", got.String())

	_, err = f.store.GetBalance(ctx, leave.BalanceKey{
		EmployeeID: "alice", LeaveTypeID: "vacation", Year: 2025,
	})
	assert.ErrorIs(t, err, leave.ErrBalanceNotFound, "the query never materializes a row")
}

func TestLedger_EntitlementFor_IncludesCarryOver(t *testing.T) {
	f := newFixture(t)
	f.seedType(t, carryOverType(5, 0))
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2023, time.June, 1))

	got, err := f.ledger.EntitlementFor(context.Background(), "alice", "vacation", 2025, date(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, "30", got.String())
}

func TestLedger_EntitlementFor_UnknownType(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))

	_, err := f.ledger.EntitlementFor(context.Background(), "alice", "nope", 2025, date(2025, time.March, 1))
	assert.ErrorIs(t, err, leave.ErrTypeNotFound)
}

// =============================================================================
// CARRY-OVER SEEDING
// =============================================================================

func carryOverType(maxCarry float64, expiryMonths int) leave.LeaveType {
	return leave.LeaveType{
		ID:             "vacation",
		Name:           "Vacation",
		MaxDaysPerYear: 25,
		CarryOver: leave.CarryOverRules{
			Enabled:          true,
			MaxCarryOverDays: maxCarry,
			ExpiryMonths:     expiryMonths,
		},
	}
}

func TestLedger_CarryOver_FromUntouchedPriorYear(t *testing.T) {
	// GIVEN: Carry-over capped at 5 and a prior year nobody ever touched
	// WHEN: This year's balance materializes
	// THEN: The untouched prior year contributes its full remainder,
	//       capped at 5

	f := newFixture(t)
	f.seedType(t, carryOverType(5, 0))
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2023, time.June, 1))

	b := f.balance(t, "alice", "vacation", 2025)

	assert.True(t, b.CarryOverDays.Equal(decimal.NewFromInt(5)), "got %s", b.CarryOverDays)
	assert.True(t, b.TotalEntitlement.Equal(decimal.NewFromInt(30)), "got %s", b.TotalEntitlement)
}

func TestLedger_CarryOver_FromMaterializedPriorYear(t *testing.T) {
	// GIVEN: 22 of 25 prior-year days consumed, carry cap 10
	// WHEN: This year's balance materializes
	// THEN: Only the actual 3-day remainder carries

	f := newFixture(t)
	f.seedType(t, carryOverType(10, 0))
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2023, time.June, 1))

	prior := leave.LeaveBalance{
		Key:              leave.BalanceKey{EmployeeID: "alice", LeaveTypeID: "vacation", Year: 2024},
		TotalEntitlement: decimal.NewFromInt(25),
		UsedDays:         decimal.NewFromInt(22),
		PendingDays:      decimal.Zero,
		CarryOverDays:    decimal.Zero,
		UpdatedAt:        date(2024, time.December, 1).Time(),
	}
	require.NoError(t, f.store.CreateBalance(context.Background(), prior))

	b := f.balance(t, "alice", "vacation", 2025)
	assert.True(t, b.CarryOverDays.Equal(decimal.NewFromInt(3)), "got %s", b.CarryOverDays)
	assert.True(t, b.TotalEntitlement.Equal(decimal.NewFromInt(28)), "got %s", b.TotalEntitlement)
}

func TestLedger_CarryOver_NoneBeforeHireYear(t *testing.T) {
	// An employee hired this year has no prior year to carry from.
	f := newFixture(t)
	f.seedType(t, carryOverType(5, 0))
	f.seedEmployee(t, "bob", "Sales", "rep", date(2025, time.January, 15))

	b := f.balance(t, "bob", "vacation", 2025)
	assert.True(t, b.CarryOverDays.IsZero())
	assert.True(t, b.TotalEntitlement.Equal(decimal.NewFromInt(25)))
}

func TestLedger_CarryOver_ExpiresRetroactively(t *testing.T) {
	// GIVEN: 5 carried days expiring 3 months after rollover, already
	//        materialized in February
	// WHEN: The same row is read again in May
	// THEN: The entitlement drops by the carried amount; nothing was
	//       rewritten at the moment the window closed

	f := newFixture(t)
	f.seedType(t, carryOverType(5, 3))
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2023, time.June, 1))

	f.today = date(2025, time.February, 1)
	b := f.balance(t, "alice", "vacation", 2025)
	assert.True(t, b.TotalEntitlement.Equal(decimal.NewFromInt(30)), "inside window: got %s", b.TotalEntitlement)

	f.today = date(2025, time.May, 1)
	b = f.balance(t, "alice", "vacation", 2025)
	assert.True(t, b.TotalEntitlement.Equal(decimal.NewFromInt(25)), "after expiry: got %s", b.TotalEntitlement)
	assert.True(t, b.CarryOverDays.Equal(decimal.NewFromInt(5)), "the grant itself stays recorded")
}

// =============================================================================
// RECONCILER - reserve / commit / release
// =============================================================================

func TestReconciler_ReserveCommit(t *testing.T) {
	// GIVEN: A fresh 25-day balance
	// WHEN: 10 days are reserved, then committed
	// THEN: pending moves to used; remaining stays 15 throughout

	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))
	ctx := context.Background()

	b := f.balance(t, "alice", "vacation", 2025)
	ten := decimal.NewFromInt(10)

	require.NoError(t, f.reconciler.Reserve(ctx, b, ten))
	assert.True(t, b.PendingDays.Equal(ten))
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 2, b.Version, "reserve bumps the row version")

	require.NoError(t, f.reconciler.Commit(ctx, b, ten))
	assert.True(t, b.PendingDays.IsZero())
	assert.True(t, b.UsedDays.Equal(ten))
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(15)))
}

func TestReconciler_ReserveRelease_RoundTrip(t *testing.T) {
	// Reserve followed by release restores the balance exactly.
	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))
	ctx := context.Background()

	b := f.balance(t, "alice", "vacation", 2025)
	days := decimal.NewFromInt(7)

	require.NoError(t, f.reconciler.Reserve(ctx, b, days))
	require.NoError(t, f.reconciler.Release(ctx, b, days))

	assert.True(t, b.PendingDays.IsZero())
	assert.True(t, b.UsedDays.IsZero())
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(25)))
}

func TestReconciler_Reserve_RejectsOverdraw(t *testing.T) {
	// GIVEN: 20 of 25 days already held
	// WHEN: Reserving 6 more
	// THEN: InsufficientBalanceError; the row is untouched

	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))
	ctx := context.Background()

	b := f.balance(t, "alice", "vacation", 2025)
	require.NoError(t, f.reconciler.Reserve(ctx, b, decimal.NewFromInt(20)))

	err := f.reconciler.Reserve(ctx, b, decimal.NewFromInt(6))

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Remaining.Equal(decimal.NewFromInt(5)))

	fresh := f.balance(t, "alice", "vacation", 2025)
	assert.True(t, fresh.PendingDays.Equal(decimal.NewFromInt(20)), "failed reserve must not change the row")
}

func TestReconciler_Commit_MoreThanPending(t *testing.T) {
	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))
	ctx := context.Background()

	b := f.balance(t, "alice", "vacation", 2025)
	require.NoError(t, f.reconciler.Reserve(ctx, b, decimal.NewFromInt(3)))

	err := f.reconciler.Commit(ctx, b, decimal.NewFromInt(5))
	assert.Error(t, err, "committing more than is pending must fail")
}

func TestReconciler_StaleRow_VersionConflict(t *testing.T) {
	// GIVEN: Two callers holding the same version of a balance row
	// WHEN: Both write
	// THEN: The second write loses with ErrVersionConflict

	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))
	ctx := context.Background()

	first := f.balance(t, "alice", "vacation", 2025)
	stale := *first

	require.NoError(t, f.reconciler.Reserve(ctx, first, decimal.NewFromInt(5)))

	err := f.reconciler.Reserve(ctx, &stale, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, leave.ErrVersionConflict)
}
