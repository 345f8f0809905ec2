/*
Package postgres provides a PostgreSQL-backed implementation of
leave.Store using pgx.

PURPOSE:
  Same contracts as store/sqlite but on a connection pool with real
  database-level concurrency. The version CAS for balances and the
  status CAS for requests translate directly: UPDATE ... WHERE
  version = $n / status = $n, with zero affected rows mapping to the
  corresponding conflict sentinel.

SCHEMA:
  Managed by Migrate(), same tables as store/sqlite with native types:
  NUMERIC for day amounts, DATE for calendar dates, TIMESTAMPTZ for
  instants. pgx scans NUMERIC into shopspring decimal via its Scan
  support, and DATE into time.Time.

SEE ALSO:
  - leave/store.go: interface definitions and the concurrency contract
  - store/sqlite: SQLite implementation
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ leave.Store = (*Store)(nil)

// Connect opens a pool against databaseURL and migrates the schema.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// New wraps an existing pool without migrating.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		max_days_per_year DOUBLE PRECISION NOT NULL,
		requires_approval BOOLEAN NOT NULL DEFAULT TRUE,
		requires_documentation BOOLEAN NOT NULL DEFAULT FALSE,
		carry_over_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		carry_over_max_days DOUBLE PRECISION NOT NULL DEFAULT 0,
		carry_over_expiry_months INTEGER NOT NULL DEFAULT 0,
		accrual_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		accrual_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		accrual_max_days DOUBLE PRECISION NOT NULL DEFAULT 0,
		accrual_start_after_months INTEGER NOT NULL DEFAULT 0,
		applicable_roles TEXT[] NOT NULL DEFAULT '{}',
		applicable_departments TEXT[] NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		hire_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_entitlement NUMERIC(8,4) NOT NULL,
		used_days NUMERIC(8,4) NOT NULL,
		pending_days NUMERIC(8,4) NOT NULL,
		carry_over_days NUMERIC(8,4) NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (employee_id, leave_type_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_year
		ON balances(year, employee_id);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		leave_type_id TEXT NOT NULL,
		leave_type_name TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		total_days INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		urgency TEXT NOT NULL DEFAULT '',
		business_impact TEXT NOT NULL DEFAULT '',
		coverage_arrangements TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		submitted_at TIMESTAMPTZ NOT NULL,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolved_at TIMESTAMPTZ,
		resolution_note TEXT NOT NULL DEFAULT '',
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

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// TYPE STORE
// =============================================================================

func (s *Store) SaveType(ctx context.Context, t leave.LeaveType) error {
	query := `
		INSERT INTO leave_types
		(id, name, description, color, max_days_per_year, requires_approval,
		 requires_documentation, carry_over_enabled, carry_over_max_days,
		 carry_over_expiry_months, accrual_enabled, accrual_rate,
		 accrual_max_days, accrual_start_after_months, applicable_roles,
		 applicable_departments, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			color = EXCLUDED.color,
			max_days_per_year = EXCLUDED.max_days_per_year,
			requires_approval = EXCLUDED.requires_approval,
			requires_documentation = EXCLUDED.requires_documentation,
			carry_over_enabled = EXCLUDED.carry_over_enabled,
			carry_over_max_days = EXCLUDED.carry_over_max_days,
			carry_over_expiry_months = EXCLUDED.carry_over_expiry_months,
			accrual_enabled = EXCLUDED.accrual_enabled,
			accrual_rate = EXCLUDED.accrual_rate,
			accrual_max_days = EXCLUDED.accrual_max_days,
			accrual_start_after_months = EXCLUDED.accrual_start_after_months,
			applicable_roles = EXCLUDED.applicable_roles,
			applicable_departments = EXCLUDED.applicable_departments,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Name, t.Description, t.Color, t.MaxDaysPerYear,
		t.RequiresApproval, t.RequiresDocumentation,
		t.CarryOver.Enabled, t.CarryOver.MaxCarryOverDays, t.CarryOver.ExpiryMonths,
		t.Accrual.Enabled, t.Accrual.AccrualRate, t.Accrual.MaxAccrualDays,
		t.Accrual.StartAccrualAfterMonths,
		t.ApplicableRoles, t.ApplicableDepartments,
		t.IsActive, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *Store) GetType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	row := s.pool.QueryRow(ctx, selectTypeQuery+" WHERE id = $1", id)
	t, err := scanType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTypes(ctx context.Context) ([]leave.LeaveType, error) {
	rows, err := s.pool.Query(ctx, selectTypeQuery+" ORDER BY name")
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
	       accrual_max_days, accrual_start_after_months, applicable_roles,
	       applicable_departments, is_active, created_by, created_at, updated_at
	FROM leave_types`

func scanType(row pgx.Row) (*leave.LeaveType, error) {
	var t leave.LeaveType
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Color, &t.MaxDaysPerYear,
		&t.RequiresApproval, &t.RequiresDocumentation,
		&t.CarryOver.Enabled, &t.CarryOver.MaxCarryOverDays, &t.CarryOver.ExpiryMonths,
		&t.Accrual.Enabled, &t.Accrual.AccrualRate, &t.Accrual.MaxAccrualDays,
		&t.Accrual.StartAccrualAfterMonths,
		&t.ApplicableRoles, &t.ApplicableDepartments,
		&t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, department, role, hire_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			department = EXCLUDED.department,
			role = EXCLUDED.role,
			hire_date = EXCLUDED.hire_date
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Name, e.Email, e.Department, e.Role,
		e.HireDate.Time(), e.CreatedAt,
	)
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, name, email, department, role, hire_date, created_at FROM employees WHERE id = $1",
		id,
	)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := s.pool.Query(ctx,
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

func scanEmployee(row pgx.Row) (*leave.Employee, error) {
	var (
		e        leave.Employee
		hireDate time.Time
	)
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Department, &e.Role, &hireDate, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.HireDate = leave.DateOf(hireDate)
	return &e, nil
}

// =============================================================================
// BALANCE STORE - Optimistic versioning
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT employee_id, leave_type_id, year, total_entitlement, used_days,
		       pending_days, carry_over_days, version, updated_at
		FROM balances
		WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3`,
		key.EmployeeID, key.LeaveTypeID, key.Year,
	)
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) CreateBalance(ctx context.Context, b leave.LeaveBalance) error {
	query := `
		INSERT INTO balances
		(employee_id, leave_type_id, year, total_entitlement, used_days,
		 pending_days, carry_over_days, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year,
		b.TotalEntitlement, b.UsedDays, b.PendingDays, b.CarryOverDays,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return leave.ErrBalanceExists
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

func (s *Store) UpdateBalance(ctx context.Context, b leave.LeaveBalance) error {
	query := `
		UPDATE balances SET
			total_entitlement = $1,
			used_days = $2,
			pending_days = $3,
			carry_over_days = $4,
			version = version + 1,
			updated_at = $5
		WHERE employee_id = $6 AND leave_type_id = $7 AND year = $8 AND version = $9
	`

	tag, err := s.pool.Exec(ctx, query,
		b.TotalEntitlement, b.UsedDays, b.PendingDays, b.CarryOverDays,
		b.UpdatedAt,
		b.Key.EmployeeID, b.Key.LeaveTypeID, b.Key.Year, b.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists int
		err := s.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM balances WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3",
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

func (s *Store) ListBalances(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	query := `
		SELECT employee_id, leave_type_id, year, total_entitlement, used_days,
		       pending_days, carry_over_days, version, updated_at
		FROM balances
		WHERE year = $1`
	args := []any{year}
	if employeeID != "" {
		query += " AND employee_id = $2"
		args = append(args, employeeID)
	}
	query += " ORDER BY employee_id, leave_type_id"

	rows, err := s.pool.Query(ctx, query, args...)
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

func scanBalance(row pgx.Row) (*leave.LeaveBalance, error) {
	var b leave.LeaveBalance
	var entitlement, used, pending, carryOver decimal.Decimal
	err := row.Scan(
		&b.Key.EmployeeID, &b.Key.LeaveTypeID, &b.Key.Year,
		&entitlement, &used, &pending, &carryOver,
		&b.Version, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.TotalEntitlement = entitlement
	b.UsedDays = used
	b.PendingDays = pending
	b.CarryOverDays = carryOver
	return &b, nil
}

// =============================================================================
// REQUEST STORE - Status CAS
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	query := `
		INSERT INTO requests
		(id, employee_id, employee_name, department, leave_type_id, leave_type_name,
		 start_date, end_date, total_days, reason, urgency, business_impact,
		 coverage_arrangements, status, submitted_at, resolved_by, resolved_at,
		 resolution_note, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	var idemKey *string
	if r.IdempotencyKey != "" {
		idemKey = &r.IdempotencyKey
	}

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.EmployeeID, r.EmployeeName, r.Department,
		r.LeaveTypeID, r.LeaveTypeName,
		r.StartDate.Time(), r.EndDate.Time(), r.TotalDays,
		r.Reason, string(r.Urgency), r.BusinessImpact, r.CoverageArrangements,
		string(r.Status), r.SubmittedAt,
		r.ResolvedBy, r.ResolvedAt, r.ResolutionNote,
		idemKey,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return leave.ErrRequestExists
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := s.pool.QueryRow(ctx, selectRequestQuery+" WHERE id = $1", id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) GetRequestByKey(ctx context.Context, employeeID leave.EmployeeID, idempotencyKey string) (*leave.LeaveRequest, error) {
	row := s.pool.QueryRow(ctx,
		selectRequestQuery+" WHERE employee_id = $1 AND idempotency_key = $2",
		employeeID, idempotencyKey,
	)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id leave.RequestID, from, to leave.RequestStatus, res leave.Resolution) error {
	query := `
		UPDATE requests SET
			status = $1,
			resolved_by = $2,
			resolved_at = $3,
			resolution_note = $4
		WHERE id = $5 AND status = $6
	`

	tag, err := s.pool.Exec(ctx, query,
		string(to), res.By, res.At, res.Note,
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := s.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM requests WHERE id = $1", id,
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

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	query := selectRequestQuery
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.EmployeeID != "" {
		conds = append(conds, "employee_id = "+arg(f.EmployeeID))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(string(f.Status)))
	}
	if f.LeaveTypeID != "" {
		conds = append(conds, "leave_type_id = "+arg(f.LeaveTypeID))
	}
	// Window filters match any overlap with [start_date, end_date].
	if f.From != nil {
		conds = append(conds, "end_date >= "+arg(f.From.Time()))
	}
	if f.To != nil {
		conds = append(conds, "start_date <= "+arg(f.To.Time()))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
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

func scanRequest(row pgx.Row) (*leave.LeaveRequest, error) {
	var (
		r                  leave.LeaveRequest
		startDate, endDate time.Time
		urgency            string
		idemKey            *string
	)

	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.EmployeeName, &r.Department,
		&r.LeaveTypeID, &r.LeaveTypeName,
		&startDate, &endDate, &r.TotalDays,
		&r.Reason, &urgency, &r.BusinessImpact, &r.CoverageArrangements,
		&r.Status, &r.SubmittedAt,
		&r.ResolvedBy, &r.ResolvedAt, &r.ResolutionNote, &idemKey,
	)
	if err != nil {
		return nil, err
	}

	r.StartDate = leave.DateOf(startDate)
	r.EndDate = leave.DateOf(endDate)
	r.Urgency = leave.UrgencyLevel(urgency)
	if idemKey != nil {
		r.IdempotencyKey = *idemKey
	}
	return &r, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
