// README: Invariant predicate tests (pure, no store).
package order

import (
	"testing"
	"time"
)

func TestInvariantChecks(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-10 * time.Minute)
	future := now.Add(10 * time.Minute)

	cases := []struct {
		name     string
		order    Order
		category Category
		violated bool
	}{
		{
			name:     "cancelled order with lingering stage",
			order:    Order{Status: StatusCancelled, TrackingStage: StageMoving},
			category: CategoryCancelledStage,
			violated: true,
		},
		{
			name:     "cancelled order with no stage is fine",
			order:    Order{Status: StatusCancelled},
			category: CategoryCancelledStage,
		},
		{
			name:     "payment received but not completed",
			order:    Order{Status: StatusInProgress, TrackingStage: StagePaymentReceived},
			category: CategoryPaymentStatus,
			violated: true,
		},
		{
			name:     "completed but stage lags behind",
			order:    Order{Status: StatusCompleted, TrackingStage: StageArrived},
			category: CategoryCompletedStage,
			violated: true,
		},
		{
			name:     "completed with payment received is fine",
			order:    Order{Status: StatusCompleted, TrackingStage: StagePaymentReceived},
			category: CategoryCompletedStage,
		},
		{
			name:     "pending order with a stage",
			order:    Order{Status: StatusPending, TrackingStage: StageWorking},
			category: CategoryPendingStage,
			violated: true,
		},
		{
			name:     "working order keeping its waiting window",
			order:    Order{Status: StatusInProgress, TrackingStage: StageWorking, WaitingStartedAt: &past, WaitingEndsAt: &future},
			category: CategoryWorkingWaiting,
			violated: true,
		},
		{
			name:     "waiting order missing one timestamp",
			order:    Order{Status: StatusInProgress, TrackingStage: StageWaiting, WaitingStartedAt: &past},
			category: CategoryWaitingTimestamps,
			violated: true,
		},
		{
			name:     "waiting order with full window intact",
			order:    Order{Status: StatusInProgress, TrackingStage: StageWaiting, WaitingStartedAt: &past, WaitingEndsAt: &future},
			category: CategoryWaitingTimestamps,
		},
		{
			name:     "waiting window expired",
			order:    Order{Status: StatusInProgress, TrackingStage: StageWaiting, WaitingStartedAt: &past, WaitingEndsAt: &past},
			category: CategoryStuckWaiting,
			violated: true,
		},
		{
			name:     "waiting window still open",
			order:    Order{Status: StatusInProgress, TrackingStage: StageWaiting, WaitingStartedAt: &past, WaitingEndsAt: &future},
			category: CategoryStuckWaiting,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.order
			_, violated := Checks[tc.category](&o, now)
			if violated != tc.violated {
				t.Fatalf("%s: violated = %v, want %v", tc.category, violated, tc.violated)
			}
		})
	}
}

// TestFixRestoresInvariant verifies that applying a check's own fix
// clears the violation it reported.
func TestFixRestoresInvariant(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-10 * time.Minute)

	orders := []Order{
		{Status: StatusCancelled, TrackingStage: StageWaiting, WaitingStartedAt: &past, WaitingEndsAt: &past},
		{Status: StatusUpcoming, TrackingStage: StagePaymentReceived},
		{Status: StatusCompleted, TrackingStage: StageMoving},
		{Status: StatusPending, TrackingStage: StageArrived},
		{Status: StatusInProgress, TrackingStage: StageWorking, WaitingStartedAt: &past, WaitingEndsAt: &past},
		{Status: StatusInProgress, TrackingStage: StageWaiting, WaitingEndsAt: &past},
		{Status: StatusUpcoming, TrackingStage: StageWaiting, WaitingStartedAt: &past, WaitingEndsAt: &past, Readiness: ReadinessReady, ReadinessPenaltyPct: 10},
	}
	for i := range orders {
		o := orders[i]
		for _, cat := range Categories {
			fix, violated := Checks[cat](&o, now)
			if !violated {
				continue
			}
			fix.Apply(&o, now)
			if _, still := Checks[cat](&o, now); still {
				t.Errorf("order %d: fix for %s did not clear the violation", i, cat)
			}
		}
		if left := Violations(&o, now); len(left) != 0 {
			t.Errorf("order %d: violations remain after fixes: %v", i, left)
		}
	}
}

func TestStuckWaitingFixReturnsOrderToPool(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-10 * time.Minute)
	o := Order{
		Status:              StatusInProgress,
		TrackingStage:       StageWaiting,
		WaitingStartedAt:    &past,
		WaitingEndsAt:       &past,
		Readiness:           ReadinessReady,
		ReadinessPenaltyPct: 10,
	}
	fix, violated := Checks[CategoryStuckWaiting](&o, now)
	if !violated {
		t.Fatal("expected stuck-waiting violation")
	}
	fix.Apply(&o, now)

	if o.Status != StatusPending {
		t.Errorf("status = %s, want pending", o.Status)
	}
	if o.TrackingStage != StageNone {
		t.Errorf("stage = %q, want none", o.TrackingStage)
	}
	if o.WaitingStartedAt != nil || o.WaitingEndsAt != nil {
		t.Error("waiting window not cleared")
	}
	if o.Readiness != ReadinessNone {
		t.Errorf("readiness = %q, want cleared", o.Readiness)
	}
	if o.ReadinessPenaltyPct != 0 {
		t.Errorf("penalty = %d, want 0", o.ReadinessPenaltyPct)
	}
}
