// README: Order record store contract (filtered reads + row updates).
package order

import (
	"context"
	"errors"
	"time"

	"fieldops/internal/types"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrConflict     = errors.New("order state conflict")
	ErrInvalidState = errors.New("invalid state transition")
	ErrBadRequest   = errors.New("bad request")
)

// Escalation is the terminal write of a reminder track: applied together
// with the final counter increment.
type Escalation struct {
	Readiness  ReadinessStatus
	PenaltyPct int
}

// WaitingWindow is the pair of timestamps that accompany the waiting stage.
type WaitingWindow struct {
	StartedAt time.Time
	EndsAt    time.Time
}

// Repository is the persistence surface the sweeps and client actions
// run against. Every write refreshes the order's updated_at marker.
// Conditional writes report applied=false when the stored row no longer
// matches the caller's snapshot, so overlapping sweeps stay safe.
type Repository interface {
	Get(ctx context.Context, id types.ID) (*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)

	// ListAwaitingReadiness returns upcoming orders with an accepted
	// assignment whose readiness check is still pending.
	ListAwaitingReadiness(ctx context.Context) ([]*Order, error)
	// ListAwaitingMovement returns upcoming orders whose specialist
	// confirmed readiness but has not reported a tracking stage.
	ListAwaitingMovement(ctx context.Context) ([]*Order, error)

	// ApplyFix persists a corrective write. Reports applied=false if the
	// row vanished.
	ApplyFix(ctx context.Context, id types.ID, fix Fix, now time.Time) (bool, error)

	// IncrementReminder bumps one track's counter and stamps its
	// last-reminder time, only if the stored counter and stamp still
	// match the caller's snapshot. esc, when non-nil, is applied in the
	// same write (third-reminder escalation).
	IncrementReminder(ctx context.Context, id types.ID, track Track, fromCount int, lastAt *time.Time, now time.Time, esc *Escalation) (bool, error)

	// AcceptedAssignment returns the accepted assignment for an order,
	// or ErrNotFound if none is accepted. With duplicate accepted rows
	// (a race the reconciler repairs) the earliest quoted_at wins.
	AcceptedAssignment(ctx context.Context, orderID types.ID) (*Assignment, error)
	// DemoteDuplicateAccepts enforces the one-accepted-assignment rule
	// across all orders: every accepted row except the earliest
	// quoted_at per order is marked rejected. Returns rows demoted.
	DemoteDuplicateAccepts(ctx context.Context, now time.Time) (int, error)
	// SetAssignmentResponse records a specialist's accept/reject answer.
	SetAssignmentResponse(ctx context.Context, orderID, specialistID types.ID, accepted bool, now time.Time) error
	// PromoteToUpcoming moves a pending order to upcoming and opens its
	// readiness check. Conditional on the order still being pending.
	PromoteToUpcoming(ctx context.Context, id types.ID, now time.Time) (bool, error)

	// SetReadiness records the specialist's readiness answer, conditional
	// on the current readiness sub-state.
	SetReadiness(ctx context.Context, id types.ID, from, to ReadinessStatus, now time.Time) (bool, error)
	// SetStage advances the tracking stage, conditional on the current
	// stage. window must be non-nil exactly when to == StageWaiting.
	// newStatus, when non-empty, is written in the same row update.
	SetStage(ctx context.Context, id types.ID, from, to TrackingStage, window *WaitingWindow, newStatus Status, now time.Time) (bool, error)

	// Worker pointer cache (denormalized current_order_id). The pointer
	// is written on accept and repaired by the reconciler; readers must
	// treat the assignment table as authoritative.
	SetWorkerOrderPointer(ctx context.Context, workerID, orderID types.ID) error
	WorkerOrderPointers(ctx context.Context) (map[types.ID]types.ID, error)
	ClearWorkerOrderPointer(ctx context.Context, workerID, orderID types.ID) (bool, error)
}
