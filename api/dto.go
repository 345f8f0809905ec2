/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Day amounts cross the wire as strings ("12.5") so fractional accrual
  reaches clients without float rounding. Whole-day request lengths stay
  plain integers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE TYPE TYPES
// =============================================================================

// CarryOverDTO mirrors leave.CarryOverRules.
type CarryOverDTO struct {
	Enabled          bool    `json:"enabled"`
	MaxCarryOverDays float64 `json:"max_carry_over_days"`
	ExpiryMonths     int     `json:"expiry_months"`
}

// AccrualDTO mirrors leave.AccrualRules.
type AccrualDTO struct {
	Enabled                 bool    `json:"enabled"`
	AccrualRate             float64 `json:"accrual_rate"`
	MaxAccrualDays          float64 `json:"max_accrual_days"`
	StartAccrualAfterMonths int     `json:"start_accrual_after_months"`
}

// LeaveTypeDTO represents a leave type in API responses.
type LeaveTypeDTO struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	Description           string       `json:"description,omitempty"`
	Color                 string       `json:"color,omitempty"`
	MaxDaysPerYear        float64      `json:"max_days_per_year"`
	RequiresApproval      bool         `json:"requires_approval"`
	RequiresDocumentation bool         `json:"requires_documentation"`
	CarryOver             CarryOverDTO `json:"carry_over"`
	Accrual               AccrualDTO   `json:"accrual"`
	ApplicableRoles       []string     `json:"applicable_roles"`
	ApplicableDepartments []string     `json:"applicable_departments"`
	IsActive              bool         `json:"is_active"`
	CreatedBy             string       `json:"created_by,omitempty"`
	CreatedAt             string       `json:"created_at,omitempty"`
}

// CreateLeaveTypeRequest is the request to create a leave type.
type CreateLeaveTypeRequest struct {
	Name                  string       `json:"name"`
	Description           string       `json:"description"`
	Color                 string       `json:"color"`
	MaxDaysPerYear        float64      `json:"max_days_per_year"`
	RequiresApproval      bool         `json:"requires_approval"`
	RequiresDocumentation bool         `json:"requires_documentation"`
	CarryOver             CarryOverDTO `json:"carry_over"`
	Accrual               AccrualDTO   `json:"accrual"`
	ApplicableRoles       []string     `json:"applicable_roles"`
	ApplicableDepartments []string     `json:"applicable_departments"`
	CreatedBy             string       `json:"created_by"`
}

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty"`
	HireDate   string `json:"hire_date"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// SaveEmployeeRequest is the request to create or update an employee.
type SaveEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
	HireDate   string `json:"hire_date"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitRequestDTO is the request body for submitting a leave request.
type SubmitRequestDTO struct {
	LeaveTypeID          string `json:"leave_type_id"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	Reason               string `json:"reason"`
	Urgency              string `json:"urgency,omitempty"`
	BusinessImpact       string `json:"business_impact,omitempty"`
	CoverageArrangements string `json:"coverage_arrangements,omitempty"`
	IdempotencyKey       string `json:"idempotency_key,omitempty"`
}

// ResolveRequestDTO carries the actor and note for approve/reject/cancel.
type ResolveRequestDTO struct {
	ActorID string `json:"actor_id"`
	Note    string `json:"note,omitempty"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID                   string  `json:"id"`
	EmployeeID           string  `json:"employee_id"`
	EmployeeName         string  `json:"employee_name"`
	Department           string  `json:"department,omitempty"`
	LeaveTypeID          string  `json:"leave_type_id"`
	LeaveTypeName        string  `json:"leave_type_name"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	TotalDays            int     `json:"total_days"`
	Reason               string  `json:"reason,omitempty"`
	Urgency              string  `json:"urgency,omitempty"`
	BusinessImpact       string  `json:"business_impact,omitempty"`
	CoverageArrangements string  `json:"coverage_arrangements,omitempty"`
	Status               string  `json:"status"`
	SubmittedAt          string  `json:"submitted_at"`
	ResolvedBy           string  `json:"resolved_by,omitempty"`
	ResolvedAt           *string `json:"resolved_at,omitempty"`
	ResolutionNote       string  `json:"resolution_note,omitempty"`
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

// BalanceDTO represents one balance row in API responses.
type BalanceDTO struct {
	EmployeeID       string `json:"employee_id"`
	LeaveTypeID      string `json:"leave_type_id"`
	Year             int    `json:"year"`
	TotalEntitlement string `json:"total_entitlement"`
	UsedDays         string `json:"used_days"`
	PendingDays      string `json:"pending_days"`
	CarryOverDays    string `json:"carry_over_days"`
	Remaining        string `json:"remaining"`
	UpdatedAt        string `json:"updated_at"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toLeaveTypeDTO(t leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:                    string(t.ID),
		Name:                  t.Name,
		Description:           t.Description,
		Color:                 t.Color,
		MaxDaysPerYear:        t.MaxDaysPerYear,
		RequiresApproval:      t.RequiresApproval,
		RequiresDocumentation: t.RequiresDocumentation,
		CarryOver: CarryOverDTO{
			Enabled:          t.CarryOver.Enabled,
			MaxCarryOverDays: t.CarryOver.MaxCarryOverDays,
			ExpiryMonths:     t.CarryOver.ExpiryMonths,
		},
		Accrual: AccrualDTO{
			Enabled:                 t.Accrual.Enabled,
			AccrualRate:             t.Accrual.AccrualRate,
			MaxAccrualDays:          t.Accrual.MaxAccrualDays,
			StartAccrualAfterMonths: t.Accrual.StartAccrualAfterMonths,
		},
		ApplicableRoles:       emptyIfNil(t.ApplicableRoles),
		ApplicableDepartments: emptyIfNil(t.ApplicableDepartments),
		IsActive:              t.IsActive,
		CreatedBy:             t.CreatedBy,
		CreatedAt:             t.CreatedAt.Format(time.RFC3339),
	}
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
		Role:       e.Role,
		HireDate:   e.HireDate.String(),
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:                   string(r.ID),
		EmployeeID:           string(r.EmployeeID),
		EmployeeName:         r.EmployeeName,
		Department:           r.Department,
		LeaveTypeID:          string(r.LeaveTypeID),
		LeaveTypeName:        r.LeaveTypeName,
		StartDate:            r.StartDate.String(),
		EndDate:              r.EndDate.String(),
		TotalDays:            r.TotalDays,
		Reason:               r.Reason,
		Urgency:              string(r.Urgency),
		BusinessImpact:       r.BusinessImpact,
		CoverageArrangements: r.CoverageArrangements,
		Status:               string(r.Status),
		SubmittedAt:          r.SubmittedAt.Format(time.RFC3339),
		ResolvedBy:           r.ResolvedBy,
		ResolutionNote:       r.ResolutionNote,
	}
	if r.ResolvedAt != nil {
		s := r.ResolvedAt.Format(time.RFC3339)
		dto.ResolvedAt = &s
	}
	return dto
}

func toBalanceDTO(b leave.LeaveBalance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:       string(b.Key.EmployeeID),
		LeaveTypeID:      string(b.Key.LeaveTypeID),
		Year:             b.Key.Year,
		TotalEntitlement: b.TotalEntitlement.String(),
		UsedDays:         b.UsedDays.String(),
		PendingDays:      b.PendingDays.String(),
		CarryOverDays:    b.CarryOverDays.String(),
		Remaining:        b.Remaining().String(),
		UpdatedAt:        b.UpdatedAt.Format(time.RFC3339),
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
