/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Implements every persistence interface (TypeStore, EmployeeStore,
  BalanceStore, RequestStore) on SQLite. The same patterns apply to
  PostgreSQL - see store/postgres for the pgx variant.

OPTIMISTIC CONCURRENCY:
  Balance writes never overwrite blindly:
  - CreateBalance is a plain INSERT; a primary-key violation maps to
    leave.ErrBalanceExists so concurrent lazy materialization converges
    on one row
  - UpdateBalance executes UPDATE ... WHERE version = ?; zero rows
    affected maps to leave.ErrVersionConflict (lost race) or
    leave.ErrBalanceNotFound (missing row)
  Status transitions follow the same shape: UPDATE ... WHERE status = ?
  with zero rows mapping to leave.ErrStaleStatus.

KEY TABLES:
  leave_types: policy rows; scope lists stored as JSON arrays
  employees:   directory records for tenure and snapshots
  balances:    PK (employee_id, leave_type_id, year), version column
  requests:    status state machine rows, partial unique index on
               (employee_id, idempotency_key)

AMOUNTS AND DATES:
  Day amounts are stored as TEXT via decimal.Decimal.String() to avoid
  REAL rounding. Calendar dates use '2006-01-02', instants RFC3339.

WAL MODE:
  SQLite is opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: interface definitions and the concurrency contract
  - leave/store/memory.go: in-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ leave.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writable connection sidesteps SQLITE_BUSY under concurrent
	// CAS retries; version checks provide the real serialization.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Leave types (policy configuration)
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		color TEXT,
		max_days_per_year REAL NOT NULL,
		requires_approval BOOLEAN NOT NULL DEFAULT TRUE,
		requires_documentation BOOLEAN NOT NULL DEFAULT FALSE,
		carry_over_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		carry_over_max_days REAL NOT NULL DEFAULT 0,
		carry_over_expiry_months INTEGER NOT NULL DEFAULT 0,
		accrual_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		accrual_rate REAL NOT NULL DEFAULT 0,
		accrual_max_days REAL NOT NULL DEFAULT 0,
		accrual_start_after_months INTEGER NOT NULL DEFAULT 0,
		applicable_roles_json TEXT NOT NULL DEFAULT '[]',
		applicable_departments_json TEXT NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_types_active
		ON leave_types(is_active);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department TEXT,
		role TEXT,
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Balances: one row per (employee, leave type, year) with an
	-- optimistic version counter
	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_entitlement TEXT NOT NULL,
		used_days TEXT NOT NULL,
		pending_days TEXT NOT NULL,
		carry_over_days TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_year
		ON balances(year, employee_id);

	-- Requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		department TEXT,
		leave_type_id TEXT NOT NULL,
		leave_type_name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		reason TEXT,
		urgency TEXT,
		business_impact TEXT,
		coverage_arrangements TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		submitted_at TEXT NOT NULL,
		resolved_by TEXT,
		resolved_at TEXT,
		resolution_note TEXT,
		idempotency_key TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id, submitted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_idempotency
		ON requests(employee_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TYPE STORE
// =============================================================================

// SaveType inserts or replaces a leave type.
func (s *Store) SaveType(ctx context.Context, t leave.LeaveType) error {
	rolesJSON, _ := json.Marshal(scopeOrEmpty(t.ApplicableRoles))
	deptsJSON, _ := json.Marshal(scopeOrEmpty(t.ApplicableDepartments))

	query := `
		INSERT INTO leave_types
		(id, name, description, color, max_days_per_year, requires_approval,
		 requires_documentation, carry_over_enabled, carry_over_max_days,
		 carry_over_expiry_months, accrual_enabled, accrual_rate,
		 accrual_max_days, accrual_start_after_months, applicable_roles_json,
		 applicable_departments_json, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			max_days_per_year = excluded.max_days_per_year,
			requires_approval = excluded.requires_approval,
			requires_documentation = excluded.requires_documentation,
			carry_over_enabled = excluded.carry_over_enabled,
			carry_over_max_days = excluded.carry_over_max_days,
			carry_over_expiry_months = excluded.carry_over_expiry_months,
			accrual_enabled = excluded.accrual_enabled,
			accrual_rate = excluded.accrual_rate,
			accrual_max_days = excluded.accrual_max_days,
			accrual_start_after_months = excluded.accrual_start_after_months,
			applicable_roles_json = excluded.applicable_roles_json,
			applicable_departments_json = excluded.applicable_departments_json,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Description, t.Color, t.MaxDaysPerYear,
		t.RequiresApproval, t.RequiresDocumentation,
		t.CarryOver.Enabled, t.CarryOver.MaxCarryOverDays, t.CarryOver.ExpiryMonths,
		t.Accrual.Enabled, t.Accrual.AccrualRate, t.Accrual.MaxAccrualDays,
		t.Accrual.StartAccrualAfterMonths,
		string(rolesJSON), string(deptsJSON),
		t.IsActive, t.CreatedBy,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetType retrieves a leave type by ID.
func (s *Store) GetType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	row := s.db.QueryRowContext(ctx, selectTypeQuery+" WHERE id = ?", id)
	t, err := scanType(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTypes returns all leave types, active and inactive.
func (s *Store) ListTypes(ctx context.Context) ([]leave.LeaveType, error) {
	rows, err := s.db.QueryContext(ctx, selectTypeQuery+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []leave.LeaveType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *t)
	}
	return types, rows.Err()
}

const selectTypeQuery = `
	SELECT id, name, description, color, max_days_per_year, requires_approval,
	       requires_documentation, carry_over_enabled, carry_over_max_days,
	       carry_over_expiry_months, accrual_enabled, accrual_rate,
	       accrual_max_days, accrual_start_after_months, applicable_roles_json,
	       applicable_departments_json, is_active, created_by, created_at, updated_at
	FROM leave_types`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanType(row rowScanner) (*leave.LeaveType, error) {
	var (
		t                    leave.LeaveType
		description          sql.NullString
		color                sql.NullString
		createdBy            sql.NullString
		rolesJSON, deptsJSON string
		createdAt, updatedAt string
	)

	err := row.Scan(
		&t.ID, &t.Name, &description, &color, &t.MaxDaysPerYear,
		&t.RequiresApproval, &t.RequiresDocumentation,
		&t.CarryOver.Enabled, &t.CarryOver.MaxCarryOverDays, &t.CarryOver.ExpiryMonths,
		&t.Accrual.Enabled, &t.Accrual.AccrualRate, &t.Accrual.MaxAccrualDays,
		&t.Accrual.StartAccrualAfterMonths,
		&rolesJSON, &deptsJSON,
		&t.IsActive, &createdBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Color = color.String
	t.CreatedBy = createdBy.String
	json.Unmarshal([]byte(rolesJSON), &t.ApplicableRoles)
	json.Unmarshal([]byte(deptsJSON), &t.ApplicableDepartments)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &t, nil
}

func scopeOrEmpty(scope []string) []string {
	if scope == nil {
		return []string{}
	}
	return scope
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, department, role, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			role = excluded.role,
			hire_date = excluded.hire_date
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Email, e.Department, e.Role,
		e.HireDate.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, department, role, hire_date, created_at FROM employees WHERE id = ?",
		id,
	)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, department, role, hire_date, created_at FROM employees ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (*leave.Employee, error) {
	var (
		e                   leave.Employee
		email, dept, role   sql.NullString
		hireDate, createdAt string
	)

	if err := row.Scan(&e.ID, &e.Name, &email, &dept, &role, &hireDate, &createdAt); err != nil {
		return nil, err
	}

	e.Email = email.String
	e.Department = dept.String
	e.Role = role.String
	e.HireDate, _ = leave.ParseDate(hireDate)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// =============================================================================
// BALANCE STORE - Optimistic versioning
// =============================================================================

// GetBalance returns the row for the key, or leave.ErrBalanceNotFound.
func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, leave_type_id, year, total_entitlement, used_days,
		       pending_days, carry_over_days, version, updated_at
		FROM balances
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?`,
		key.EmployeeID, key.LeaveTypeID, key.Year,
	)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBalance inserts a new row with version 1. A primary-key collision
// maps to leave.ErrBalanceExists.
func (s *Store) CreateBalance(ctx context.Context, b leave.LeaveBalance) error {
	query := `
		INSERT INTO balances
		(employee_id, leave_type_id, year, total_entitlement, used_days,
		 pending_days, carry_over_days, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year,
		b.TotalEntitlement.String(), b.UsedDays.String(),
		b.PendingDays.String(), b.CarryOverDays.String(),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrBalanceExists
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// UpdateBalance persists b only if the stored version matches b.Version,
// then bumps the version. Zero affected rows means either a lost race
// (leave.ErrVersionConflict) or a missing row (leave.ErrBalanceNotFound).
func (s *Store) UpdateBalance(ctx context.Context, b leave.LeaveBalance) error {
	query := `
		UPDATE balances SET
			total_entitlement = ?,
			used_days = ?,
			pending_days = ?,
			carry_over_days = ?,
			version = version + 1,
			updated_at = ?
		WHERE employee_id = ? AND leave_type_id = ? AND year = ? AND version = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		b.TotalEntitlement.String(), b.UsedDays.String(),
		b.PendingDays.String(), b.CarryOverDays.String(),
		b.UpdatedAt.UTC().Format(time.RFC3339),
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year, b.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM balances WHERE employee_id = ? AND leave_type_id = ? AND year = ?",
			b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return leave.ErrBalanceNotFound
		}
		return leave.ErrVersionConflict
	}
	return nil
}

// ListBalances returns rows for one employee (or all when employeeID is
// empty) in the given year.
func (s *Store) ListBalances(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	query := `
		SELECT employee_id, leave_type_id, year, total_entitlement, used_days,
		       pending_days, carry_over_days, version, updated_at
		FROM balances
		WHERE year = ?`
	args := []any{year}
	if employeeID != "" {
		query += " AND employee_id = ?"
		args = append(args, employeeID)
	}
	query += " ORDER BY employee_id, leave_type_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []leave.LeaveBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, *b)
	}
	return balances, rows.Err()
}

func scanBalance(row rowScanner) (*leave.LeaveBalance, error) {
	var (
		b                          leave.LeaveBalance
		entitlement, used          string
		pending, carryOver         string
		updatedAt                  string
	)

	err := row.Scan(
		&b.Key.EmployeeID, &b.Key.LeaveTypeID, &b.Key.Year,
		&entitlement, &used, &pending, &carryOver,
		&b.Version, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.TotalEntitlement, err = decimal.NewFromString(entitlement); err != nil {
		return nil, fmt.Errorf("corrupt entitlement value %q: %w", entitlement, err)
	}
	if b.UsedDays, err = decimal.NewFromString(used); err != nil {
		return nil, fmt.Errorf("corrupt used_days value %q: %w", used, err)
	}
	if b.PendingDays, err = decimal.NewFromString(pending); err != nil {
		return nil, fmt.Errorf("corrupt pending_days value %q: %w", pending, err)
	}
	if b.CarryOverDays, err = decimal.NewFromString(carryOver); err != nil {
		return nil, fmt.Errorf("corrupt carry_over_days value %q: %w", carryOver, err)
	}
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

// =============================================================================
// REQUEST STORE - Status CAS
// =============================================================================

// CreateRequest inserts a new request.
func (s *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	query := `
		INSERT INTO requests
		(id, employee_id, employee_name, department, leave_type_id, leave_type_name,
		 start_date, end_date, total_days, reason, urgency, business_impact,
		 coverage_arrangements, status, submitted_at, resolved_by, resolved_at,
		 resolution_note, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var resolvedAt *string
	if r.ResolvedAt != nil {
		t := r.ResolvedAt.UTC().Format(time.RFC3339)
		resolvedAt = &t
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.EmployeeName, r.Department,
		r.LeaveTypeID, r.LeaveTypeName,
		r.StartDate.String(), r.EndDate.String(), r.TotalDays,
		r.Reason, string(r.Urgency), r.BusinessImpact, r.CoverageArrangements,
		string(r.Status),
		r.SubmittedAt.UTC().Format(time.RFC3339),
		r.ResolvedBy, resolvedAt, r.ResolutionNote,
		nullString(r.IdempotencyKey),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrRequestExists
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID, or leave.ErrRequestNotFound.
func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx, selectRequestQuery+" WHERE id = ?", id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRequestByKey returns the request previously submitted with the
// given idempotency key.
func (s *Store) GetRequestByKey(ctx context.Context, employeeID leave.EmployeeID, idempotencyKey string) (*leave.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx,
		selectRequestQuery+" WHERE employee_id = ? AND idempotency_key = ?",
		employeeID, idempotencyKey,
	)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRequestStatus transitions id from 'from' to 'to' atomically.
// Zero affected rows means either the request is gone
// (leave.ErrRequestNotFound) or it already left 'from'
// (leave.ErrStaleStatus).
func (s *Store) UpdateRequestStatus(ctx context.Context, id leave.RequestID, from, to leave.RequestStatus, res leave.Resolution) error {
	query := `
		UPDATE requests SET
			status = ?,
			resolved_by = ?,
			resolved_at = ?,
			resolution_note = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(to), res.By, res.At.UTC().Format(time.RFC3339), res.Note,
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM requests WHERE id = ?", id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return leave.ErrRequestNotFound
		}
		return leave.ErrStaleStatus
	}
	return nil
}

// ListRequests returns requests matching the filter, newest first.
func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	query := selectRequestQuery
	var conds []string
	var args []any

	if f.EmployeeID != "" {
		conds = append(conds, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.LeaveTypeID != "" {
		conds = append(conds, "leave_type_id = ?")
		args = append(args, f.LeaveTypeID)
	}
	// Window filters match any overlap with [start_date, end_date].
	if f.From != nil {
		conds = append(conds, "end_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		conds = append(conds, "start_date <= ?")
		args = append(args, f.To.String())
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

const selectRequestQuery = `
	SELECT id, employee_id, employee_name, department, leave_type_id,
	       leave_type_name, start_date, end_date, total_days, reason, urgency,
	       business_impact, coverage_arrangements, status, submitted_at,
	       resolved_by, resolved_at, resolution_note, idempotency_key
	FROM requests`

func scanRequest(row rowScanner) (*leave.LeaveRequest, error) {
	var (
		r                       leave.LeaveRequest
		department              sql.NullString
		reason, urgency         sql.NullString
		impact, coverage        sql.NullString
		resolvedBy, resolvedAt  sql.NullString
		resolutionNote, idemKey sql.NullString
		startDate, endDate      string
		submittedAt             string
	)

	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.EmployeeName, &department,
		&r.LeaveTypeID, &r.LeaveTypeName,
		&startDate, &endDate, &r.TotalDays,
		&reason, &urgency, &impact, &coverage,
		&r.Status, &submittedAt,
		&resolvedBy, &resolvedAt, &resolutionNote, &idemKey,
	)
	if err != nil {
		return nil, err
	}

	r.Department = department.String
	r.Reason = reason.String
	r.Urgency = leave.UrgencyLevel(urgency.String)
	r.BusinessImpact = impact.String
	r.CoverageArrangements = coverage.String
	r.ResolvedBy = resolvedBy.String
	r.ResolutionNote = resolutionNote.String
	r.IdempotencyKey = idemKey.String
	r.StartDate, _ = leave.ParseDate(startDate)
	r.EndDate, _ = leave.ParseDate(endDate)
	r.SubmittedAt, _ = time.Parse(time.RFC3339, submittedAt)
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String)
		r.ResolvedAt = &t
	}
	return &r, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"requests", "balances", "employees", "leave_types"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
