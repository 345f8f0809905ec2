package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEAVE TYPE REGISTRY
// =============================================================================

// Registry owns leave-type configuration. It validates new types, handles
// deactivation, and serves reads. Policy changes never rewrite balances
// or requests that were computed under earlier rules.
type Registry struct {
	types TypeStore

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewRegistry(types TypeStore) *Registry {
	return &Registry{types: types, Clock: time.Now}
}

// TypeConfig is the input for creating a leave type.
type TypeConfig struct {
	Name        string
	Description string
	Color       string

	MaxDaysPerYear        float64
	RequiresApproval      bool
	RequiresDocumentation bool

	CarryOver CarryOverRules
	Accrual   AccrualRules

	ApplicableRoles       []string
	ApplicableDepartments []string

	CreatedBy string
}

// CreateType validates the configuration and persists a new active type.
func (r *Registry) CreateType(ctx context.Context, cfg TypeConfig) (*LeaveType, error) {
	if err := validateTypeConfig(cfg); err != nil {
		return nil, err
	}

	now := r.Clock().UTC()
	t := LeaveType{
		ID:                    LeaveTypeID(uuid.NewString()),
		Name:                  cfg.Name,
		Description:           cfg.Description,
		Color:                 cfg.Color,
		MaxDaysPerYear:        cfg.MaxDaysPerYear,
		RequiresApproval:      cfg.RequiresApproval,
		RequiresDocumentation: cfg.RequiresDocumentation,
		CarryOver:             cfg.CarryOver,
		Accrual:               cfg.Accrual,
		ApplicableRoles:       cfg.ApplicableRoles,
		ApplicableDepartments: cfg.ApplicableDepartments,
		IsActive:              true,
		CreatedBy:             cfg.CreatedBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := r.types.SaveType(ctx, t); err != nil {
		return nil, transient("create leave type", err)
	}
	return &t, nil
}

func validateTypeConfig(cfg TypeConfig) error {
	if cfg.Name == "" {
		return invalidField("name", "must not be empty")
	}
	if cfg.MaxDaysPerYear <= 0 {
		return invalidField("maxDaysPerYear", "must be greater than zero")
	}
	if cfg.CarryOver.Enabled {
		if cfg.CarryOver.MaxCarryOverDays < 0 {
			return invalidField("carryOverRules.maxCarryOverDays", "must not be negative")
		}
		if cfg.CarryOver.MaxCarryOverDays > cfg.MaxDaysPerYear {
			return invalidField("carryOverRules.maxCarryOverDays",
				fmt.Sprintf("must not exceed maxDaysPerYear (%g)", cfg.MaxDaysPerYear))
		}
	}
	if cfg.Accrual.Enabled {
		if cfg.Accrual.AccrualRate <= 0 {
			return invalidField("accrualRules.accrualRate", "must be greater than zero")
		}
		if cfg.Accrual.MaxAccrualDays > cfg.MaxDaysPerYear {
			return invalidField("accrualRules.maxAccrualDays",
				fmt.Sprintf("must not exceed maxDaysPerYear (%g)", cfg.MaxDaysPerYear))
		}
		if cfg.Accrual.StartAccrualAfterMonths < 0 {
			return invalidField("accrualRules.startAccrualAfterMonths", "must not be negative")
		}
	}
	return nil
}

// Deactivate marks the type inactive. New submissions against it are
// rejected; existing balances and requests are untouched.
func (r *Registry) Deactivate(ctx context.Context, id LeaveTypeID) error {
	t, err := r.types.GetType(ctx, id)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return nil
	}
	t.IsActive = false
	t.UpdatedAt = r.Clock().UTC()
	if err := r.types.SaveType(ctx, *t); err != nil {
		return transient("deactivate leave type", err)
	}
	return nil
}

// Get returns a leave type by id.
func (r *Registry) Get(ctx context.Context, id LeaveTypeID) (*LeaveType, error) {
	return r.types.GetType(ctx, id)
}

// ScopeFilter narrows ListActive to types applicable to a role and/or
// department. Empty fields match everything.
type ScopeFilter struct {
	Role       string
	Department string
}

// ListActive returns active types in scope for the filter.
func (r *Registry) ListActive(ctx context.Context, f ScopeFilter) ([]LeaveType, error) {
	all, err := r.types.ListTypes(ctx)
	if err != nil {
		return nil, transient("list leave types", err)
	}

	var out []LeaveType
	for _, t := range all {
		if !t.IsActive {
			continue
		}
		if f.Role != "" && !matchesScope(t.ApplicableRoles, f.Role) {
			continue
		}
		if f.Department != "" && !matchesScope(t.ApplicableDepartments, f.Department) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
