// README: Pure invariant predicates over order snapshots, with minimal corrective writes.
package order

import "time"

// Category names one invariant concern; the reconciler reports a counter
// per category.
type Category string

const (
	CategoryCancelledStage    Category = "cancelled_stage"    // cancelled orders must carry no tracking stage
	CategoryPaymentStatus     Category = "payment_status"     // payment_received stage implies a completed order
	CategoryCompletedStage    Category = "completed_stage"    // completed orders must sit at payment_received
	CategoryPendingStage      Category = "pending_stage"      // pending orders must carry no tracking stage
	CategoryWorkingWaiting    Category = "working_waiting"    // working orders must not keep a waiting window
	CategoryWaitingTimestamps Category = "waiting_timestamps" // waiting requires both window timestamps
	CategoryStuckWaiting      Category = "stuck_waiting"      // waiting past its deadline must exit the stage
)

// Categories lists every invariant in evaluation order. Status-level
// repairs run before stage-level ones so a cancelled or completed order
// never reaches the waiting checks with a stale stage.
var Categories = []Category{
	CategoryCancelledStage,
	CategoryPaymentStatus,
	CategoryCompletedStage,
	CategoryPendingStage,
	CategoryWorkingWaiting,
	CategoryWaitingTimestamps,
	CategoryStuckWaiting,
}

// Fix is the minimal corrective write for one violation. Nil pointers and
// false flags leave the corresponding field untouched.
type Fix struct {
	Category Category

	SetStatus    *Status
	SetStage     *TrackingStage
	ClearWaiting bool
	SetReadiness *ReadinessStatus
	ResetPenalty bool
}

// Check evaluates one invariant against an order snapshot. It reports
// whether the invariant is violated and, if so, the corrective write.
// Checks are deterministic and side-effect-free.
type Check func(o *Order, now time.Time) (Fix, bool)

// Checks maps each category to its predicate.
var Checks = map[Category]Check{
	CategoryCancelledStage:    checkCancelledStage,
	CategoryPaymentStatus:     checkPaymentStatus,
	CategoryCompletedStage:    checkCompletedStage,
	CategoryPendingStage:      checkPendingStage,
	CategoryWorkingWaiting:    checkWorkingWaiting,
	CategoryWaitingTimestamps: checkWaitingTimestamps,
	CategoryStuckWaiting:      checkStuckWaiting,
}

func checkCancelledStage(o *Order, _ time.Time) (Fix, bool) {
	if o.Status != StatusCancelled || o.TrackingStage == StageNone {
		return Fix{}, false
	}
	stage := StageNone
	return Fix{
		Category:     CategoryCancelledStage,
		SetStage:     &stage,
		ClearWaiting: true,
	}, true
}

func checkPaymentStatus(o *Order, _ time.Time) (Fix, bool) {
	if o.TrackingStage != StagePaymentReceived || o.Status == StatusCompleted {
		return Fix{}, false
	}
	status := StatusCompleted
	return Fix{
		Category:  CategoryPaymentStatus,
		SetStatus: &status,
	}, true
}

func checkCompletedStage(o *Order, _ time.Time) (Fix, bool) {
	if o.Status != StatusCompleted || o.TrackingStage == StagePaymentReceived {
		return Fix{}, false
	}
	stage := StagePaymentReceived
	return Fix{
		Category:     CategoryCompletedStage,
		SetStage:     &stage,
		ClearWaiting: true,
	}, true
}

func checkPendingStage(o *Order, _ time.Time) (Fix, bool) {
	if o.Status != StatusPending || o.TrackingStage == StageNone {
		return Fix{}, false
	}
	stage := StageNone
	return Fix{
		Category:     CategoryPendingStage,
		SetStage:     &stage,
		ClearWaiting: true,
	}, true
}

func checkWorkingWaiting(o *Order, _ time.Time) (Fix, bool) {
	if o.TrackingStage != StageWorking {
		return Fix{}, false
	}
	if o.WaitingStartedAt == nil && o.WaitingEndsAt == nil {
		return Fix{}, false
	}
	return Fix{
		Category:     CategoryWorkingWaiting,
		ClearWaiting: true,
	}, true
}

func checkWaitingTimestamps(o *Order, _ time.Time) (Fix, bool) {
	if o.TrackingStage != StageWaiting {
		return Fix{}, false
	}
	if o.WaitingStartedAt != nil && o.WaitingEndsAt != nil {
		return Fix{}, false
	}
	// A waiting order missing half of its window is downgraded to the
	// stage it came from.
	stage := StageArrived
	return Fix{
		Category:     CategoryWaitingTimestamps,
		SetStage:     &stage,
		ClearWaiting: true,
	}, true
}

func checkStuckWaiting(o *Order, now time.Time) (Fix, bool) {
	if o.TrackingStage != StageWaiting {
		return Fix{}, false
	}
	if o.WaitingStartedAt == nil || o.WaitingEndsAt == nil {
		return Fix{}, false
	}
	if !o.WaitingEndsAt.Before(now) {
		return Fix{}, false
	}
	// Stuck past the deadline: the order goes back to the assignment
	// pool with a clean readiness slate.
	status := StatusPending
	stage := StageNone
	readiness := ReadinessNone
	return Fix{
		Category:     CategoryStuckWaiting,
		SetStatus:    &status,
		SetStage:     &stage,
		ClearWaiting: true,
		SetReadiness: &readiness,
		ResetPenalty: true,
	}, true
}

// Violations evaluates every invariant against a snapshot without
// applying anything. Used by tests to assert closure after a pass.
func Violations(o *Order, now time.Time) []Category {
	var out []Category
	for _, cat := range Categories {
		if _, bad := Checks[cat](o, now); bad {
			out = append(out, cat)
		}
	}
	return out
}

// Apply mutates a snapshot the way the store would persist the fix.
// Shared by the in-memory store and by closure tests.
func (f Fix) Apply(o *Order, now time.Time) {
	if f.SetStatus != nil {
		o.Status = *f.SetStatus
	}
	if f.SetStage != nil {
		o.TrackingStage = *f.SetStage
	}
	if f.ClearWaiting {
		o.WaitingStartedAt = nil
		o.WaitingEndsAt = nil
	}
	if f.SetReadiness != nil {
		o.Readiness = *f.SetReadiness
	}
	if f.ResetPenalty {
		o.ReadinessPenaltyPct = 0
	}
	o.UpdatedAt = now
}
