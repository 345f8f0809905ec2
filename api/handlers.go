/*
handlers.go - HTTP API handlers for the leave management workflow

PURPOSE:
  Exposes the leave workflow via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Leave types:
    GET    /api/leave-types               List active types (role/department scope filter)
    POST   /api/leave-types               Create leave type
    GET    /api/leave-types/{id}          Get one type
    POST   /api/leave-types/{id}/deactivate  Deactivate (idempotent)

  Employees:
    GET    /api/employees                 List all employees
    POST   /api/employees                 Create or update employee
    GET    /api/employees/{id}            Get employee details
    GET    /api/employees/{id}/balances   Balances for a year (lazy materialized)
    GET    /api/employees/{id}/requests   Request history
    POST   /api/employees/{id}/requests   Submit leave request

  Requests:
    GET    /api/requests                  List requests (status/type/date filters)
    GET    /api/requests/{id}             Get one request
    POST   /api/requests/{id}/approve     Approve pending request
    POST   /api/requests/{id}/reject      Reject pending request
    POST   /api/requests/{id}/cancel      Cancel pending request

  Balances:
    GET    /api/balances                  Org-wide balances for a year

ERROR HANDLING:
  Domain errors map to HTTP status via writeDomainError:
  - 400: validation failures
  - 404: unknown type/employee/request
  - 409: stale status transitions (double approve, cancel after approve)
  - 422: insufficient balance
  - 503: exhausted balance CAS retries (safe to retry)
  - 500: everything else

SECURITY NOTE:
  No authentication middleware. Actor identity arrives in request bodies
  and is trusted as given; authn/authz sits in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry  *leave.Registry
	Lifecycle *leave.Service
	Facade    *leave.Facade
	Store     leave.Store
}

// NewHandler wires the handler against a store and the domain services.
func NewHandler(store leave.Store, registry *leave.Registry, lifecycle *leave.Service, facade *leave.Facade) *Handler {
	return &Handler{
		Registry:  registry,
		Lifecycle: lifecycle,
		Facade:    facade,
		Store:     store,
	}
}

// =============================================================================
// LEAVE TYPE HANDLERS
// =============================================================================

// ListLeaveTypes returns active types, optionally scoped by role and
// department query parameters.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	filter := leave.ScopeFilter{
		Role:       r.URL.Query().Get("role"),
		Department: r.URL.Query().Get("department"),
	}

	types, err := h.Registry.ListActive(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list leave types", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toLeaveTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeaveType returns a single type, active or not.
func (h *Handler) GetLeaveType(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveTypeID(chi.URLParam(r, "id"))

	t, err := h.Registry.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(*t))
}

// CreateLeaveType validates and persists a new leave type.
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.Registry.CreateType(r.Context(), leave.TypeConfig{
		Name:                  req.Name,
		Description:           req.Description,
		Color:                 req.Color,
		MaxDaysPerYear:        req.MaxDaysPerYear,
		RequiresApproval:      req.RequiresApproval,
		RequiresDocumentation: req.RequiresDocumentation,
		CarryOver: leave.CarryOverRules{
			Enabled:          req.CarryOver.Enabled,
			MaxCarryOverDays: req.CarryOver.MaxCarryOverDays,
			ExpiryMonths:     req.CarryOver.ExpiryMonths,
		},
		Accrual: leave.AccrualRules{
			Enabled:                 req.Accrual.Enabled,
			AccrualRate:             req.Accrual.AccrualRate,
			MaxAccrualDays:          req.Accrual.MaxAccrualDays,
			StartAccrualAfterMonths: req.Accrual.StartAccrualAfterMonths,
		},
		ApplicableRoles:       req.ApplicableRoles,
		ApplicableDepartments: req.ApplicableDepartments,
		CreatedBy:             req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, "Failed to create leave type", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(*t))
}

// DeactivateLeaveType marks a type inactive. Repeated calls are no-ops.
func (h *Handler) DeactivateLeaveType(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveTypeID(chi.URLParam(r, "id"))

	if err := h.Registry.Deactivate(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to deactivate leave type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// SaveEmployee creates or updates an employee record.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	hireDate, err := leave.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	emp := leave.Employee{
		ID:         leave.EmployeeID(req.ID),
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Role:       req.Role,
		HireDate:   hireDate,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetEmployeeBalances returns per-type balances for an employee and year.
// Rows are materialized on first read, so a brand-new employee sees their
// entitlements immediately.
func (h *Handler) GetEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	balances, err := h.Facade.BalancesFor(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to get balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListBalances returns org-wide balances for a year.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	balances, err := h.Facade.BalancesFor(r.Context(), "", year)
	if err != nil {
		writeDomainError(w, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().UTC().Year(), nil
	}
	return strconv.Atoi(raw)
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest submits a leave request for the employee in the URL.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))

	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	startDate, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	endDate, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Lifecycle.Submit(r.Context(), leave.SubmitInput{
		EmployeeID:           employeeID,
		LeaveTypeID:          leave.LeaveTypeID(req.LeaveTypeID),
		StartDate:            startDate,
		EndDate:              endDate,
		Reason:               req.Reason,
		Urgency:              leave.UrgencyLevel(req.Urgency),
		BusinessImpact:       req.BusinessImpact,
		CoverageArrangements: req.CoverageArrangements,
		IdempotencyKey:       req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	req, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ListRequests returns requests matching query filters, newest first.
// Filters: employee_id, status, leave_type_id, from, to (overlap window).
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := requestFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	requests, err := h.Facade.RequestsFor(r.Context(), filter.EmployeeID, filter)
	if err != nil {
		writeDomainError(w, "Failed to list requests", err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListEmployeeRequests returns request history for one employee.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))

	filter, err := requestFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	requests, err := h.Facade.RequestsFor(r.Context(), employeeID, filter)
	if err != nil {
		writeDomainError(w, "Failed to list requests", err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func requestFilter(r *http.Request) (leave.RequestFilter, error) {
	q := r.URL.Query()
	filter := leave.RequestFilter{
		EmployeeID:  leave.EmployeeID(q.Get("employee_id")),
		Status:      leave.RequestStatus(q.Get("status")),
		LeaveTypeID: leave.LeaveTypeID(q.Get("leave_type_id")),
	}

	if raw := q.Get("from"); raw != "" {
		d, err := leave.ParseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := leave.ParseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.To = &d
	}
	return filter, nil
}

// ApproveRequest transitions a pending request to approved.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Lifecycle.Approve)
}

// RejectRequest transitions a pending request to rejected.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.Lifecycle.Reject)
}

// CancelRequest transitions a pending request to cancelled.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, func(ctx context.Context, id leave.RequestID, actorID, _ string) (*leave.LeaveRequest, error) {
		return h.Lifecycle.Cancel(ctx, id, actorID)
	})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id leave.RequestID, actorID, note string) (*leave.LeaveRequest, error)) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body ResolveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	req, err := fn(r.Context(), id, body.ActorID, body.Note)
	if err != nil {
		writeDomainError(w, "Failed to resolve request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error categories to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, leave.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, leave.ErrInvalidState):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, leave.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case leave.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
