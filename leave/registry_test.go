package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

func newRegistry(f *fixture) *leave.Registry {
	r := leave.NewRegistry(f.store)
	r.Clock = func() time.Time { return f.today.Time() }
	return r
}

func validConfig() leave.TypeConfig {
	return leave.TypeConfig{
		Name:             "Vacation",
		Description:      "Annual vacation days",
		Color:            "#4CAF50",
		MaxDaysPerYear:   25,
		RequiresApproval: true,
		CreatedBy:        "hr-admin",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestRegistry_CreateType(t *testing.T) {
	// GIVEN: A valid configuration
	// WHEN: The type is created
	// THEN: It is persisted active with a generated id

	f := newFixture(t)
	r := newRegistry(f)

	created, err := r.CreateType(context.Background(), validConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, "Vacation", created.Name)

	stored, err := r.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
}

func TestRegistry_CreateType_Validation(t *testing.T) {
	f := newFixture(t)
	r := newRegistry(f)

	tests := []struct {
		name   string
		mutate func(*leave.TypeConfig)
		field  string
	}{
		{
			name:   "empty name",
			mutate: func(c *leave.TypeConfig) { c.Name = "" },
			field:  "name",
		},
		{
			name:   "zero max days",
			mutate: func(c *leave.TypeConfig) { c.MaxDaysPerYear = 0 },
			field:  "maxDaysPerYear",
		},
		{
			name: "carry-over cap above yearly max",
			mutate: func(c *leave.TypeConfig) {
				c.CarryOver = leave.CarryOverRules{Enabled: true, MaxCarryOverDays: 30}
			},
			field: "carryOverRules.maxCarryOverDays",
		},
		{
			name: "negative carry-over cap",
			mutate: func(c *leave.TypeConfig) {
				c.CarryOver = leave.CarryOverRules{Enabled: true, MaxCarryOverDays: -1}
			},
			field: "carryOverRules.maxCarryOverDays",
		},
		{
			name: "zero accrual rate",
			mutate: func(c *leave.TypeConfig) {
				c.Accrual = leave.AccrualRules{Enabled: true, AccrualRate: 0}
			},
			field: "accrualRules.accrualRate",
		},
		{
			name: "accrual cap above yearly max",
			mutate: func(c *leave.TypeConfig) {
				c.Accrual = leave.AccrualRules{Enabled: true, AccrualRate: 2, MaxAccrualDays: 30}
			},
			field: "accrualRules.maxAccrualDays",
		},
		{
			name: "negative waiting period",
			mutate: func(c *leave.TypeConfig) {
				c.Accrual = leave.AccrualRules{Enabled: true, AccrualRate: 2, MaxAccrualDays: 24, StartAccrualAfterMonths: -1}
			},
			field: "accrualRules.startAccrualAfterMonths",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			_, err := r.CreateType(context.Background(), cfg)

			require.ErrorIs(t, err, leave.ErrValidation)
			var verr *leave.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// =============================================================================
// DEACTIVATE
// =============================================================================

func TestRegistry_Deactivate(t *testing.T) {
	// GIVEN: An active type with an approved day in flight
	// WHEN: The type is deactivated
	// THEN: New submissions are rejected but the existing balance survives

	f := newFixture(t)
	f.seedType(t, vacation25())
	f.seedEmployee(t, "alice", "Engineering", "engineer", date(2024, time.February, 1))
	r := newRegistry(f)
	ctx := context.Background()

	f.submit(t, "alice", "vacation", date(2025, time.March, 10), date(2025, time.March, 12))

	require.NoError(t, r.Deactivate(ctx, "vacation"))

	_, err := f.service.Submit(ctx, leave.SubmitInput{
		EmployeeID:  "alice",
		LeaveTypeID: "vacation",
		StartDate:   date(2025, time.April, 1),
		EndDate:     date(2025, time.April, 2),
		Reason:      "spring break",
	})
	assert.ErrorIs(t, err, leave.ErrValidation)

	b := f.balance(t, "alice", "vacation", 2025)
	assert.Equal(t, "3", b.PendingDays.String(), "existing reservations are untouched")

	// Deactivating twice is a no-op.
	require.NoError(t, r.Deactivate(ctx, "vacation"))
}

func TestRegistry_Deactivate_UnknownType(t *testing.T) {
	f := newFixture(t)
	r := newRegistry(f)
	err := r.Deactivate(context.Background(), "nope")
	assert.ErrorIs(t, err, leave.ErrTypeNotFound)
}

// =============================================================================
// SCOPE FILTERING
// =============================================================================

func TestRegistry_ListActive_ScopeFilter(t *testing.T) {
	// GIVEN: A universal type, an engineering-only type, and an inactive type
	// WHEN: Listing for different roles and departments
	// THEN: Scope lists narrow the result; empty lists match everyone

	f := newFixture(t)
	r := newRegistry(f)
	ctx := context.Background()

	f.seedType(t, leave.LeaveType{ID: "vacation", Name: "Vacation", MaxDaysPerYear: 25})
	f.seedType(t, leave.LeaveType{
		ID:                    "conference",
		Name:                  "Conference",
		MaxDaysPerYear:        5,
		ApplicableRoles:       []string{"engineer"},
		ApplicableDepartments: []string{"Engineering"},
	})
	retired := f.seedType(t, leave.LeaveType{ID: "retired", Name: "Retired", MaxDaysPerYear: 10})
	require.NoError(t, r.Deactivate(ctx, retired.ID))

	all, err := r.ListActive(ctx, leave.ScopeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "inactive types never list")

	eng, err := r.ListActive(ctx, leave.ScopeFilter{Role: "engineer", Department: "Engineering"})
	require.NoError(t, err)
	assert.Len(t, eng, 2)

	sales, err := r.ListActive(ctx, leave.ScopeFilter{Role: "rep", Department: "Sales"})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, leave.LeaveTypeID("vacation"), sales[0].ID)
}
