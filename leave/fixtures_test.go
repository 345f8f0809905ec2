package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// SHARED TEST FIXTURE
// =============================================================================

// fixture wires the whole workflow against the in-memory store with a
// controllable clock. Tests move time by assigning f.today.
type fixture struct {
	store      *store.Memory
	ledger     *leave.Ledger
	reconciler *leave.Reconciler
	service    *leave.Service
	events     *leave.CaptureDispatcher

	today leave.Date
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: store.NewMemory(),
		today: date(2025, time.March, 1),
	}
	f.ledger = leave.NewLedger(f.store, f.store, f.store)
	f.ledger.Clock = func() leave.Date { return f.today }
	f.reconciler = leave.NewReconciler(f.store)
	f.reconciler.Clock = func() time.Time { return f.today.Time() }
	f.events = &leave.CaptureDispatcher{}
	f.service = leave.NewService(f.store, f.ledger, f.reconciler, f.events)
	f.service.Clock = func() time.Time { return f.today.Time() }
	return f
}

func date(y int, m time.Month, d int) leave.Date {
	return leave.NewDate(y, m, d)
}

func (f *fixture) seedEmployee(t *testing.T, id, department, role string, hired leave.Date) leave.Employee {
	t.Helper()
	emp := leave.Employee{
		ID:         leave.EmployeeID(id),
		Name:       "Employee " + id,
		Email:      id + "@example.com",
		Department: department,
		Role:       role,
		HireDate:   hired,
		CreatedAt:  f.today.Time(),
	}
	require.NoError(t, f.store.SaveEmployee(context.Background(), emp))
	return emp
}

func (f *fixture) seedType(t *testing.T, lt leave.LeaveType) leave.LeaveType {
	t.Helper()
	if lt.Name == "" {
		lt.Name = string(lt.ID)
	}
	lt.IsActive = true
	lt.CreatedAt = f.today.Time()
	lt.UpdatedAt = f.today.Time()
	require.NoError(t, f.store.SaveType(context.Background(), lt))
	return lt
}

// vacation25 is the baseline policy most tests start from: 25 days,
// granted up front, no carry-over.
func vacation25() leave.LeaveType {
	return leave.LeaveType{
		ID:               "vacation",
		Name:             "Vacation",
		MaxDaysPerYear:   25,
		RequiresApproval: true,
	}
}

func (f *fixture) balance(t *testing.T, employeeID, typeID string, year int) *leave.LeaveBalance {
	t.Helper()
	b, err := f.ledger.BalanceFor(context.Background(), leave.BalanceKey{
		EmployeeID:  leave.EmployeeID(employeeID),
		LeaveTypeID: leave.LeaveTypeID(typeID),
		Year:        year,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) submit(t *testing.T, employeeID, typeID string, from, to leave.Date) *leave.LeaveRequest {
	t.Helper()
	req, err := f.service.Submit(context.Background(), leave.SubmitInput{
		EmployeeID:  leave.EmployeeID(employeeID),
		LeaveTypeID: leave.LeaveTypeID(typeID),
		StartDate:   from,
		EndDate:     to,
		Reason:      "family trip",
	})
	require.NoError(t, err)
	return req
}
