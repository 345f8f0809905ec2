package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

func balanceRow(employee, typ string, year int) leave.LeaveBalance {
	return leave.LeaveBalance{
		Key: leave.BalanceKey{
			EmployeeID:  leave.EmployeeID(employee),
			LeaveTypeID: leave.LeaveTypeID(typ),
			Year:        year,
		},
		TotalEntitlement: decimal.NewFromInt(25),
		UsedDays:         decimal.Zero,
		PendingDays:      decimal.Zero,
		CarryOverDays:    decimal.Zero,
		UpdatedAt:        time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// BALANCE CAS
// =============================================================================

func TestMemory_CreateBalance_OnlyOnce(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateBalance(ctx, balanceRow("alice", "vacation", 2025)))
	err := m.CreateBalance(ctx, balanceRow("alice", "vacation", 2025))
	assert.ErrorIs(t, err, leave.ErrBalanceExists)

	got, err := m.GetBalance(ctx, balanceRow("alice", "vacation", 2025).Key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version, "created rows always start at version 1")
}

func TestMemory_UpdateBalance_VersionCAS(t *testing.T) {
	// GIVEN: A stored row at version 1
	// WHEN: A write at the current version lands, then a write at the
	//       now-stale version retries
	// THEN: The first succeeds and bumps the version; the second conflicts

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateBalance(ctx, balanceRow("alice", "vacation", 2025)))

	current, err := m.GetBalance(ctx, balanceRow("alice", "vacation", 2025).Key)
	require.NoError(t, err)
	stale := *current

	current.PendingDays = decimal.NewFromInt(5)
	require.NoError(t, m.UpdateBalance(ctx, *current))

	stale.PendingDays = decimal.NewFromInt(3)
	err = m.UpdateBalance(ctx, stale)
	assert.ErrorIs(t, err, leave.ErrVersionConflict)

	got, err := m.GetBalance(ctx, stale.Key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "5", got.PendingDays.String(), "the losing write left no trace")
}

func TestMemory_UpdateBalance_MissingRow(t *testing.T) {
	m := store.NewMemory()
	err := m.UpdateBalance(context.Background(), balanceRow("alice", "vacation", 2025))
	assert.ErrorIs(t, err, leave.ErrBalanceNotFound)
}

func TestMemory_ListBalances(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateBalance(ctx, balanceRow("bob", "vacation", 2025)))
	require.NoError(t, m.CreateBalance(ctx, balanceRow("alice", "vacation", 2025)))
	require.NoError(t, m.CreateBalance(ctx, balanceRow("alice", "sick", 2025)))
	require.NoError(t, m.CreateBalance(ctx, balanceRow("alice", "vacation", 2024)))

	all, err := m.ListBalances(ctx, "", 2025)
	require.NoError(t, err)
	require.Len(t, all, 3, "other years are excluded")
	assert.Equal(t, leave.LeaveTypeID("sick"), all[0].Key.LeaveTypeID, "sorted by employee then type")
	assert.Equal(t, leave.EmployeeID("bob"), all[2].Key.EmployeeID)

	alice, err := m.ListBalances(ctx, "alice", 2025)
	require.NoError(t, err)
	assert.Len(t, alice, 2)
}

// =============================================================================
// REQUEST STATUS CAS
// =============================================================================

func requestRow(id, employee string, status leave.RequestStatus, submitted time.Time) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:          leave.RequestID(id),
		EmployeeID:  leave.EmployeeID(employee),
		LeaveTypeID: "vacation",
		StartDate:   leave.NewDate(2025, time.March, 10),
		EndDate:     leave.NewDate(2025, time.March, 14),
		TotalDays:   5,
		Reason:      "family trip",
		Status:      status,
		SubmittedAt: submitted,
	}
}

func TestMemory_UpdateRequestStatus_CAS(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: Two settlements race on it
	// THEN: Only the first transition lands; the second sees a stale status

	m := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateRequest(ctx, requestRow("r-1", "alice", leave.StatusPending, now)))

	res := leave.Resolution{By: "mgr-1", At: now, Note: "ok"}
	require.NoError(t, m.UpdateRequestStatus(ctx, "r-1", leave.StatusPending, leave.StatusApproved, res))

	err := m.UpdateRequestStatus(ctx, "r-1", leave.StatusPending, leave.StatusRejected, res)
	assert.ErrorIs(t, err, leave.ErrStaleStatus)

	got, err := m.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "mgr-1", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, "ok", got.ResolutionNote)
}

func TestMemory_UpdateRequestStatus_MissingRequest(t *testing.T) {
	m := store.NewMemory()
	err := m.UpdateRequestStatus(context.Background(), "nope", leave.StatusPending, leave.StatusApproved, leave.Resolution{})
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)
}

// =============================================================================
// IDEMPOTENCY INDEX
// =============================================================================

func TestMemory_GetRequestByKey(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	keyed := requestRow("r-1", "alice", leave.StatusPending, now)
	keyed.IdempotencyKey = "retry-abc"
	require.NoError(t, m.CreateRequest(ctx, keyed))
	require.NoError(t, m.CreateRequest(ctx, requestRow("r-2", "alice", leave.StatusPending, now)))

	got, err := m.GetRequestByKey(ctx, "alice", "retry-abc")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestID("r-1"), got.ID)

	// The key is scoped per employee.
	_, err = m.GetRequestByKey(ctx, "bob", "retry-abc")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)

	_, err = m.GetRequestByKey(ctx, "alice", "other")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)
}

func TestMemory_CreateRequest_DuplicateKeyRejected(t *testing.T) {
	// GIVEN: A stored request carrying an idempotency key
	// WHEN: A second insert reuses the same (employee, key) pair
	// THEN: The insert is rejected; a different employee may reuse the key

	m := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	first := requestRow("r-1", "alice", leave.StatusPending, now)
	first.IdempotencyKey = "retry-abc"
	require.NoError(t, m.CreateRequest(ctx, first))

	dup := requestRow("r-2", "alice", leave.StatusPending, now)
	dup.IdempotencyKey = "retry-abc"
	assert.ErrorIs(t, m.CreateRequest(ctx, dup), leave.ErrRequestExists)

	_, err := m.GetRequest(ctx, "r-2")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound, "the losing insert left no row")

	other := requestRow("r-3", "bob", leave.StatusPending, now)
	other.IdempotencyKey = "retry-abc"
	assert.NoError(t, m.CreateRequest(ctx, other))
}

func TestMemory_CreateRequest_DuplicateIDRejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.CreateRequest(ctx, requestRow("r-1", "alice", leave.StatusPending, now)))
	err := m.CreateRequest(ctx, requestRow("r-1", "alice", leave.StatusPending, now))
	assert.ErrorIs(t, err, leave.ErrRequestExists)
}

// =============================================================================
// REQUEST LISTING
// =============================================================================

func TestMemory_ListRequests_FiltersAndOrder(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	t0 := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	early := requestRow("r-1", "alice", leave.StatusPending, t0)
	late := requestRow("r-2", "bob", leave.StatusApproved, t0.Add(time.Hour))
	late.StartDate = leave.NewDate(2025, time.June, 2)
	late.EndDate = leave.NewDate(2025, time.June, 6)
	require.NoError(t, m.CreateRequest(ctx, early))
	require.NoError(t, m.CreateRequest(ctx, late))

	all, err := m.ListRequests(ctx, leave.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, leave.RequestID("r-2"), all[0].ID, "newest submission first")

	approved, err := m.ListRequests(ctx, leave.RequestFilter{Status: leave.StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, leave.RequestID("r-2"), approved[0].ID)

	from := leave.NewDate(2025, time.March, 12)
	to := leave.NewDate(2025, time.March, 20)
	march, err := m.ListRequests(ctx, leave.RequestFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, leave.RequestID("r-1"), march[0].ID, "partial overlap still matches")
}
