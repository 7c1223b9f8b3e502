// README: Live status derivation tests.
package presence

import (
	"context"
	"testing"
	"time"

	"fieldops/internal/config"
	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

func testService(store Reader) *Service {
	return NewService(store, config.PresenceConfig{FreshnessMinutes: 30})
}

func TestDerive(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	fresh := now.Add(-5 * time.Minute)
	stale := now.Add(-3 * time.Hour)
	earlierToday := now.Add(-10 * time.Minute)

	svc := testService(nil)

	cases := []struct {
		name string
		snap Snapshot
		want LiveStatus
	}{
		{
			name: "manual toggle off wins over everything",
			snap: Snapshot{WorkerID: "w", IsActive: false, DeviceLastUsedAt: &fresh,
				ActiveOrder: &ActiveOrder{OrderID: "o", Stage: order.StageWorking}},
			want: StatusOffline,
		},
		{
			name: "moving assignment",
			snap: Snapshot{WorkerID: "w", IsActive: true,
				ActiveOrder: &ActiveOrder{OrderID: "o", Stage: order.StageMoving}},
			want: StatusOnTheWay,
		},
		{
			name: "working assignment beats a stale device",
			snap: Snapshot{WorkerID: "w", IsActive: true, DeviceLastUsedAt: &stale,
				ActiveOrder: &ActiveOrder{OrderID: "o", Stage: order.StageWorking}},
			want: StatusWorking,
		},
		{
			name: "arrived maps to working",
			snap: Snapshot{WorkerID: "w", IsActive: true,
				ActiveOrder: &ActiveOrder{OrderID: "o", Stage: order.StageArrived}},
			want: StatusWorking,
		},
		{
			name: "accepted with no stage yet",
			snap: Snapshot{WorkerID: "w", IsActive: true,
				ActiveOrder: &ActiveOrder{OrderID: "o", Stage: order.StageNone}},
			want: StatusBusy,
		},
		{
			name: "fresh device, no assignment",
			snap: Snapshot{WorkerID: "w", IsActive: true, DeviceLastUsedAt: &fresh},
			want: StatusOnline,
		},
		{
			name: "stale device, no assignment",
			snap: Snapshot{WorkerID: "w", IsActive: true, DeviceLastUsedAt: &stale},
			want: StatusOffline,
		},
		{
			name: "no device ever registered",
			snap: Snapshot{WorkerID: "w", IsActive: true},
			want: StatusNotLoggedIn,
		},
		{
			name: "same-day response rescues a stale device",
			snap: Snapshot{WorkerID: "w", IsActive: true, DeviceLastUsedAt: &stale,
				LastResponseKind: "accepted", LastResponseAt: &earlierToday},
			want: StatusOnline,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Derive(tc.snap, now)
			if got.Status != tc.want {
				t.Fatalf("status = %s, want %s", got.Status, tc.want)
			}
		})
	}
}

func TestYesterdayResponseDoesNotRescue(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	stale := now.Add(-3 * time.Hour)
	yesterday := now.Add(-26 * time.Hour)

	svc := testService(nil)
	got := svc.Derive(Snapshot{
		WorkerID: "w", IsActive: true,
		DeviceLastUsedAt: &stale,
		LastResponseKind: "accepted", LastResponseAt: &yesterday,
	}, now)
	if got.Status != StatusOffline {
		t.Fatalf("status = %s, want offline (yesterday's response is no recency signal)", got.Status)
	}
}

func TestDeriveCarriesCountersAndOrder(t *testing.T) {
	now := time.Now()
	respondedAt := now.Add(-time.Hour)
	svc := testService(nil)

	got := svc.Derive(Snapshot{
		WorkerID:         "w",
		IsActive:         true,
		ActiveOrder:      &ActiveOrder{OrderID: "o9", Stage: order.StageWaiting},
		AcceptedToday:    2,
		RejectedToday:    1,
		LastResponseKind: "accepted",
		LastResponseAt:   &respondedAt,
	}, now)

	if got.Status != StatusWorking {
		t.Errorf("status = %s, want working", got.Status)
	}
	if got.CurrentOrderID == nil || *got.CurrentOrderID != "o9" {
		t.Errorf("currentOrderId = %v, want o9", got.CurrentOrderID)
	}
	if got.AcceptedToday != 2 || got.RejectedToday != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.AcceptedToday, got.RejectedToday)
	}
	if got.LastResponseKind != "accepted" || got.LastResponseAt == nil {
		t.Errorf("last response = %q/%v", got.LastResponseKind, got.LastResponseAt)
	}
}

// fixedReader serves canned snapshots.
type fixedReader struct {
	snaps []Snapshot
}

func (r *fixedReader) Snapshots(_ context.Context, _ []types.ID) ([]Snapshot, error) {
	return r.snaps, nil
}

func TestListToleratesMissingRows(t *testing.T) {
	// A worker with no device, no assignment, no responses is a normal
	// answer, not an error.
	svc := testService(&fixedReader{snaps: []Snapshot{
		{WorkerID: "w_new", IsActive: true},
	}})

	out, err := svc.List(context.Background(), []types.ID{"w_new"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d statuses, want 1", len(out))
	}
	if out[0].Status != StatusNotLoggedIn {
		t.Fatalf("status = %s, want not_logged_in", out[0].Status)
	}
}
