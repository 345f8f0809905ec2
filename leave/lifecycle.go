/*
lifecycle.go - Request state machine

PURPOSE:
  Drives a leave request from submission to a terminal state:

      pending ──▶ approved   (reservation committed to usedDays)
          │
          ├────▶ rejected    (reservation released)
          └────▶ cancelled   (reservation released)

  No transition leaves a terminal state. Status writes are a CAS on the
  stored status, so a concurrent approve and cancel settle exactly once.

CRITICAL SECTION:
  Submission's balance check and reservation form one logical unit: the
  remaining-days check and the pendingDays increment both read and write
  the same versioned row, so two submissions that would jointly overdraw
  a balance cannot both win. The loser either retries against the fresh
  row or fails with InsufficientBalanceError.

IDEMPOTENT SUBMISSION:
  A client-supplied idempotency key makes retried submissions safe: the
  same key returns the originally created request instead of reserving
  twice.

SETTLEMENT ORDERING:
  Settlement writes the status CAS first, then reconciles the balance.
  The order guarantees at-most-once accounting: once a request is
  terminal no second settlement can touch the balance. The cost is a
  failure window where the status landed but the reconcile exhausted its
  retries, leaving days parked in pendingDays. That state never
  overdraws (pending only shrinks the remaining balance) and is
  self-describing in the ledger; reconcileSettled keeps retrying before
  giving up precisely to keep the window small.

SEE ALSO:
  - balance.go: the reconciler performing reserve/commit/release
  - events.go: notification payloads emitted after each transition
*/
package leave

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// maxBalanceRetries bounds CAS retry loops before surfacing a
// TransientError to the caller.
const maxBalanceRetries = 3

// =============================================================================
// REQUEST SERVICE
// =============================================================================

// Service orchestrates the request lifecycle. It is the sole writer of
// LeaveRequest.Status.
type Service struct {
	requests   RequestStore
	types      TypeStore
	ledger     *Ledger
	reconciler *Reconciler
	dispatcher Dispatcher

	// Clock and NewID are injectable for tests.
	Clock func() time.Time
	NewID func() RequestID
}

func NewService(store Store, ledger *Ledger, reconciler *Reconciler, dispatcher Dispatcher) *Service {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	return &Service{
		requests:   store,
		types:      store,
		ledger:     ledger,
		reconciler: reconciler,
		dispatcher: dispatcher,
		Clock:      time.Now,
		NewID:      func() RequestID { return RequestID(uuid.NewString()) },
	}
}

// SubmitInput carries everything a submission needs. Employee identity
// values come from the session provider and are trusted as given.
type SubmitInput struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID

	StartDate Date
	EndDate   Date

	Reason               string
	Urgency              UrgencyLevel
	BusinessImpact       string
	CoverageArrangements string

	// Optional. See LeaveRequest.IdempotencyKey.
	IdempotencyKey string
}

// Submit validates the input, checks the balance, reserves the days and
// creates the request in pending state. The check and the reservation
// execute as a CAS on the balance row, retried on version conflicts.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*LeaveRequest, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		existing, err := s.requests.GetRequestByKey(ctx, in.EmployeeID, in.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrRequestNotFound) {
			return nil, transient("idempotency lookup", err)
		}
	}

	t, err := s.types.GetType(ctx, in.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, invalidField("leaveTypeId", "leave type is no longer active")
	}

	emp, err := s.ledger.employees.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !t.AppliesTo(emp.Role, emp.Department) {
		return nil, invalidField("leaveTypeId", "leave type does not apply to this employee")
	}

	totalDays := DaysInclusive(in.StartDate, in.EndDate)
	key := BalanceKey{EmployeeID: in.EmployeeID, LeaveTypeID: in.LeaveTypeID, Year: in.StartDate.Year()}

	if _, err := s.reserveWithRetry(ctx, key, t, totalDays); err != nil {
		return nil, err
	}

	now := s.Clock().UTC()
	req := LeaveRequest{
		ID:                   s.NewID(),
		EmployeeID:           emp.ID,
		EmployeeName:         emp.Name,
		Department:           emp.Department,
		LeaveTypeID:          t.ID,
		LeaveTypeName:        t.Name,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		TotalDays:            totalDays,
		Reason:               in.Reason,
		Urgency:              in.Urgency,
		BusinessImpact:       in.BusinessImpact,
		CoverageArrangements: in.CoverageArrangements,
		Status:               StatusPending,
		SubmittedAt:          now,
		IdempotencyKey:       in.IdempotencyKey,
	}

	if err := s.requests.CreateRequest(ctx, req); err != nil {
		// The reservation is already held; compensate before failing.
		s.releaseWithRetry(ctx, key, totalDays)
		if errors.Is(err, ErrRequestExists) && in.IdempotencyKey != "" {
			// Lost a same-key race; the winner's request is the answer.
			if existing, gerr := s.requests.GetRequestByKey(ctx, in.EmployeeID, in.IdempotencyKey); gerr == nil {
				return existing, nil
			}
		}
		return nil, transient("create request", err)
	}

	s.dispatcher.Dispatch(ctx, Event{
		Type:        EventSubmitted,
		RequestID:   req.ID,
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: req.LeaveTypeID,
		ActorID:     string(req.EmployeeID),
		Timestamp:   now,
	})
	return &req, nil
}

func validateSubmit(in SubmitInput) error {
	if in.EmployeeID == "" {
		return invalidField("employeeId", "must not be empty")
	}
	if in.LeaveTypeID == "" {
		return invalidField("leaveTypeId", "must not be empty")
	}
	if in.StartDate.IsZero() {
		return invalidField("startDate", "must not be empty")
	}
	if in.EndDate.IsZero() {
		return invalidField("endDate", "must not be empty")
	}
	if in.EndDate.Before(in.StartDate) {
		return invalidField("endDate", "must not be before startDate")
	}
	if in.Reason == "" {
		return invalidField("reason", "must not be empty")
	}
	switch in.Urgency {
	case "", UrgencyLow, UrgencyMedium, UrgencyHigh:
	default:
		return invalidField("urgencyLevel", "must be low, medium or high")
	}
	return nil
}

// reserveWithRetry runs the check-then-reserve critical section. A lost
// version race reloads the row and retries, so the sufficiency check is
// always evaluated against the state the reservation lands on.
func (s *Service) reserveWithRetry(ctx context.Context, key BalanceKey, t *LeaveType, totalDays int) (*LeaveBalance, error) {
	days := Days(totalDays)

	var lastErr error
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		balance, err := s.ledger.BalanceFor(ctx, key)
		if err != nil {
			return nil, err
		}

		if !balance.CanReserve(days) {
			return nil, &InsufficientBalanceError{
				EmployeeID:    key.EmployeeID,
				LeaveTypeID:   key.LeaveTypeID,
				LeaveTypeName: t.Name,
				Year:          key.Year,
				Requested:     days,
				Remaining:     balance.Remaining(),
			}
		}

		err = s.reconciler.Reserve(ctx, balance, days)
		if err == nil {
			return balance, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, transient("reserve balance", lastErr)
}

func (s *Service) releaseWithRetry(ctx context.Context, key BalanceKey, totalDays int) {
	days := Days(totalDays)
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		balance, err := s.ledger.BalanceFor(ctx, key)
		if err != nil {
			return
		}
		if err := s.reconciler.Release(ctx, balance, days); !errors.Is(err, ErrVersionConflict) {
			return
		}
	}
}

// =============================================================================
// TRANSITIONS OUT OF PENDING
// =============================================================================

// Approve transitions a pending request to approved and commits its
// reservation to usedDays. Any other current status fails with
// InvalidStateError and touches no balance.
func (s *Service) Approve(ctx context.Context, id RequestID, approverID, note string) (*LeaveRequest, error) {
	return s.settle(ctx, id, StatusApproved, approverID, note, EventApproved)
}

// Reject transitions a pending request to rejected and releases its
// reservation. usedDays is unchanged.
func (s *Service) Reject(ctx context.Context, id RequestID, approverID, reason string) (*LeaveRequest, error) {
	return s.settle(ctx, id, StatusRejected, approverID, reason, EventRejected)
}

// Cancel withdraws a pending request and releases its reservation.
// Revoking an already-approved request is a different concern and is not
// supported through this path.
func (s *Service) Cancel(ctx context.Context, id RequestID, actorID string) (*LeaveRequest, error) {
	return s.settle(ctx, id, StatusCancelled, actorID, "", EventCancelled)
}

func (s *Service) settle(ctx context.Context, id RequestID, to RequestStatus, actorID, note string, event EventType) (*LeaveRequest, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.Clock().UTC()
	res := Resolution{By: actorID, At: now, Note: note}

	// The status CAS decides the race: only the transition that lands it
	// performs the balance mutation.
	err = s.requests.UpdateRequestStatus(ctx, id, StatusPending, to, res)
	if errors.Is(err, ErrStaleStatus) {
		current, gerr := s.requests.GetRequest(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &InvalidStateError{RequestID: id, Current: current.Status, Attempted: to}
	}
	if err != nil {
		return nil, transient("update request status", err)
	}

	key := BalanceKey{EmployeeID: req.EmployeeID, LeaveTypeID: req.LeaveTypeID, Year: req.StartDate.Year()}
	if err := s.reconcileSettled(ctx, key, to, req.TotalDays); err != nil {
		return nil, err
	}

	req.Status = to
	req.ResolvedBy = actorID
	req.ResolvedAt = &now
	req.ResolutionNote = note

	s.dispatcher.Dispatch(ctx, Event{
		Type:        event,
		RequestID:   req.ID,
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: req.LeaveTypeID,
		ActorID:     actorID,
		Timestamp:   now,
	})
	return req, nil
}

func (s *Service) reconcileSettled(ctx context.Context, key BalanceKey, to RequestStatus, totalDays int) error {
	days := Days(totalDays)

	var lastErr error
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		balance, err := s.ledger.BalanceFor(ctx, key)
		if err != nil {
			return err
		}

		if to == StatusApproved {
			err = s.reconciler.Commit(ctx, balance, days)
		} else {
			err = s.reconciler.Release(ctx, balance, days)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		lastErr = err
	}
	return transient("reconcile balance", lastErr)
}
