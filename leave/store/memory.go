// Package store provides an in-memory leave.Store implementation, used
// for tests and local development. It honors the same optimistic
// concurrency contract as the SQL stores: balance writes CAS on the row
// version, status writes CAS on the current status.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	types     map[leave.LeaveTypeID]leave.LeaveType
	employees map[leave.EmployeeID]leave.Employee
	balances  map[leave.BalanceKey]leave.LeaveBalance
	requests  map[leave.RequestID]leave.LeaveRequest
	idemKeys  map[idemKey]leave.RequestID
}

type idemKey struct {
	EmployeeID leave.EmployeeID
	Key        string
}

func NewMemory() *Memory {
	return &Memory{
		types:     make(map[leave.LeaveTypeID]leave.LeaveType),
		employees: make(map[leave.EmployeeID]leave.Employee),
		balances:  make(map[leave.BalanceKey]leave.LeaveBalance),
		requests:  make(map[leave.RequestID]leave.LeaveRequest),
		idemKeys:  make(map[idemKey]leave.RequestID),
	}
}

var _ leave.Store = (*Memory)(nil)

// =============================================================================
// TYPE STORE
// =============================================================================

func (m *Memory) SaveType(_ context.Context, t leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[t.ID] = t
	return nil
}

func (m *Memory) GetType(_ context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[id]
	if !ok {
		return nil, leave.ErrTypeNotFound
	}
	return &t, nil
}

func (m *Memory) ListTypes(_ context.Context) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveType, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, leave.ErrEmployeeNotFound
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// BALANCE STORE - Optimistic versioning
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, key leave.BalanceKey) (*leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[key]
	if !ok {
		return nil, leave.ErrBalanceNotFound
	}
	return &b, nil
}

func (m *Memory) CreateBalance(_ context.Context, b leave.LeaveBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.balances[b.Key]; exists {
		return leave.ErrBalanceExists
	}
	b.Version = 1
	m.balances[b.Key] = b
	return nil
}

func (m *Memory) UpdateBalance(_ context.Context, b leave.LeaveBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[b.Key]
	if !ok {
		return leave.ErrBalanceNotFound
	}
	if current.Version != b.Version {
		return leave.ErrVersionConflict
	}
	b.Version++
	m.balances[b.Key] = b
	return nil
}

func (m *Memory) ListBalances(_ context.Context, employeeID leave.EmployeeID, year int) ([]leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.LeaveBalance
	for key, b := range m.balances {
		if key.Year != year {
			continue
		}
		if employeeID != "" && key.EmployeeID != employeeID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.EmployeeID != out[j].Key.EmployeeID {
			return out[i].Key.EmployeeID < out[j].Key.EmployeeID
		}
		return out[i].Key.LeaveTypeID < out[j].Key.LeaveTypeID
	})
	return out, nil
}

// =============================================================================
// REQUEST STORE - Status CAS
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[r.ID]; exists {
		return leave.ErrRequestExists
	}
	k := idemKey{EmployeeID: r.EmployeeID, Key: r.IdempotencyKey}
	if r.IdempotencyKey != "" {
		if _, exists := m.idemKeys[k]; exists {
			return leave.ErrRequestExists
		}
		m.idemKeys[k] = r.ID
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	return &r, nil
}

func (m *Memory) GetRequestByKey(_ context.Context, employeeID leave.EmployeeID, key string) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.idemKeys[idemKey{EmployeeID: employeeID, Key: key}]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	r := m.requests[id]
	return &r, nil
}

func (m *Memory) UpdateRequestStatus(_ context.Context, id leave.RequestID, from, to leave.RequestStatus, res leave.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return leave.ErrRequestNotFound
	}
	if r.Status != from {
		return leave.ErrStaleStatus
	}
	r.Status = to
	r.ResolvedBy = res.By
	at := res.At
	r.ResolvedAt = &at
	r.ResolutionNote = res.Note
	m.requests[id] = r
	return nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.LeaveRequest
	for _, r := range m.requests {
		if !matches(r, f) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func matches(r leave.LeaveRequest, f leave.RequestFilter) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.LeaveTypeID != "" && r.LeaveTypeID != f.LeaveTypeID {
		return false
	}
	// Date window matches any overlap with [StartDate, EndDate].
	if f.From != nil && r.EndDate.Before(*f.From) {
		return false
	}
	if f.To != nil && r.StartDate.After(*f.To) {
		return false
	}
	return true
}
