// README: Live status deriver; pure fusion of presence signals, read-only.
package presence

import (
	"context"
	"time"

	"fieldops/internal/config"
	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

// Reader loads presence snapshots for a set of workers. Implementations
// must tolerate missing related rows rather than erroring.
type Reader interface {
	Snapshots(ctx context.Context, workerIDs []types.ID) ([]Snapshot, error)
}

type Service struct {
	store Reader
	cfg   config.PresenceConfig
}

func NewService(store Reader, cfg config.PresenceConfig) *Service {
	return &Service{store: store, cfg: cfg}
}

// List derives the live status for each requested worker.
func (s *Service) List(ctx context.Context, workerIDs []types.ID) ([]WorkerStatus, error) {
	snaps, err := s.store.Snapshots(ctx, workerIDs)
	if err != nil {
		return nil, err
	}
	out := make([]WorkerStatus, 0, len(snaps))
	now := time.Now()
	for _, snap := range snaps {
		out = append(out, s.Derive(snap, now))
	}
	return out, nil
}

// Derive computes one worker's label. Precedence:
//  1. the manual availability toggle: off means offline, full stop;
//  2. an active accepted assignment: its stage wins over any recency
//     signal, so a worker mid-job is never reported merely online;
//  3. device-registration recency, tie-broken by same-day response
//     activity so a worker who just acted is not misreported stale.
func (s *Service) Derive(snap Snapshot, now time.Time) WorkerStatus {
	st := WorkerStatus{
		WorkerID:         snap.WorkerID,
		AcceptedToday:    snap.AcceptedToday,
		RejectedToday:    snap.RejectedToday,
		LastResponseKind: snap.LastResponseKind,
		LastResponseAt:   snap.LastResponseAt,
	}

	if !snap.IsActive {
		st.Status = StatusOffline
		return st
	}

	if snap.ActiveOrder != nil {
		st.CurrentOrderID = &snap.ActiveOrder.OrderID
		st.Status = stageLabel(snap.ActiveOrder.Stage)
		return st
	}

	if snap.DeviceLastUsedAt == nil {
		st.Status = StatusNotLoggedIn
		return st
	}

	seen := *snap.DeviceLastUsedAt
	if snap.LastResponseAt != nil && sameDay(*snap.LastResponseAt, now) && snap.LastResponseAt.After(seen) {
		seen = *snap.LastResponseAt
	}
	freshness := time.Duration(s.cfg.FreshnessMinutes) * time.Minute
	if now.Sub(seen) <= freshness {
		st.Status = StatusOnline
	} else {
		st.Status = StatusOffline
	}
	return st
}

func stageLabel(stage order.TrackingStage) LiveStatus {
	switch stage {
	case order.StageMoving:
		return StatusOnTheWay
	case order.StageArrived, order.StageWaiting, order.StageWorking, order.StageInvoiceRequested:
		return StatusWorking
	default:
		// Accepted but no stage reported yet.
		return StatusBusy
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
