package leave

import "context"

// =============================================================================
// QUERY FACADE - Read-side views
// =============================================================================

// Facade serves the read side: request listings and balance summaries,
// per employee or organization-wide. Reads hit the same store the
// writers use, so a caller that just submitted or settled a request sees
// the new state on its next read. Results are one-shot snapshots, not
// restartable cursors.
type Facade struct {
	requests  RequestStore
	employees EmployeeStore
	types     TypeStore
	balances  BalanceStore
	ledger    *Ledger
}

func NewFacade(store Store, ledger *Ledger) *Facade {
	return &Facade{requests: store, employees: store, types: store, balances: store, ledger: ledger}
}

// RequestsFor lists requests for one employee, or for the whole
// organization when employeeID is empty. The filter's employee field is
// overridden by the argument.
func (f *Facade) RequestsFor(ctx context.Context, employeeID EmployeeID, filter RequestFilter) ([]LeaveRequest, error) {
	filter.EmployeeID = employeeID
	reqs, err := f.requests.ListRequests(ctx, filter)
	if err != nil {
		return nil, transient("list requests", err)
	}
	return reqs, nil
}

// BalancesFor returns balances for one employee (or everyone when
// employeeID is empty): the stored rows for the year, plus rows
// materialized on the fly for active leave types in scope that have
// never been referenced. Stored rows stay visible after their type is
// deactivated or re-scoped; deactivation never erases history.
func (f *Facade) BalancesFor(ctx context.Context, employeeID EmployeeID, year int) ([]LeaveBalance, error) {
	var employees []Employee
	if employeeID != "" {
		emp, err := f.employees.GetEmployee(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		employees = []Employee{*emp}
	} else {
		all, err := f.employees.ListEmployees(ctx)
		if err != nil {
			return nil, transient("list employees", err)
		}
		employees = all
	}

	active, err := f.activeTypes(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := f.balances.ListBalances(ctx, employeeID, year)
	if err != nil {
		return nil, transient("list balances", err)
	}
	storedKeys := make(map[EmployeeID][]BalanceKey)
	for _, b := range stored {
		storedKeys[b.Key.EmployeeID] = append(storedKeys[b.Key.EmployeeID], b.Key)
	}

	var out []LeaveBalance
	for _, emp := range employees {
		inScope := make(map[LeaveTypeID]bool)
		keys := make([]BalanceKey, 0, len(active))
		for _, t := range active {
			if !t.AppliesTo(emp.Role, emp.Department) {
				continue
			}
			inScope[t.ID] = true
			keys = append(keys, BalanceKey{EmployeeID: emp.ID, LeaveTypeID: t.ID, Year: year})
		}
		for _, key := range storedKeys[emp.ID] {
			if !inScope[key.LeaveTypeID] {
				keys = append(keys, key)
			}
		}
		for _, key := range keys {
			b, err := f.ledger.BalanceFor(ctx, key)
			if err != nil {
				return nil, err
			}
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *Facade) activeTypes(ctx context.Context) ([]LeaveType, error) {
	all, err := f.types.ListTypes(ctx)
	if err != nil {
		return nil, transient("list leave types", err)
	}
	var active []LeaveType
	for _, t := range all {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}
