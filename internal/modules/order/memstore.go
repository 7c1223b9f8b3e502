// README: In-memory order store; mutex-guarded, copy-on-read.
//
// Serves as the hermetic repository for tests and for single-node
// deployments without Postgres. Conditional writes use the same
// compare-then-write semantics as the SQL store, so sweep concurrency
// properties hold against either implementation.
package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldops/internal/types"
)

type MemStore struct {
	mu          sync.Mutex
	orders      map[types.ID]*Order
	assignments map[types.ID][]*Assignment
	pointers    map[types.ID]types.ID
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders:      map[types.ID]*Order{},
		assignments: map[types.ID][]*Assignment{},
		pointers:    map[types.ID]types.ID{},
	}
}

// PutOrder inserts or replaces an order snapshot.
func (s *MemStore) PutOrder(o *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
}

// PutAssignment inserts or replaces an assignment row.
func (s *MemStore) PutAssignment(a *Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.assignments[a.OrderID]
	for i, r := range rows {
		if r.SpecialistID == a.SpecialistID {
			cp := *a
			rows[i] = &cp
			return
		}
	}
	cp := *a
	s.assignments[a.OrderID] = append(rows, &cp)
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemStore) ListAll(_ context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(*Order) bool { return true }), nil
}

func (s *MemStore) ListAwaitingReadiness(_ context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(o *Order) bool {
		return o.Status == StatusUpcoming &&
			o.Readiness == ReadinessPending &&
			s.hasAcceptedLocked(o.ID)
	}), nil
}

func (s *MemStore) ListAwaitingMovement(_ context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(o *Order) bool {
		return o.Status == StatusUpcoming &&
			o.Readiness == ReadinessReady &&
			o.TrackingStage == StageNone &&
			s.hasAcceptedLocked(o.ID)
	}), nil
}

func (s *MemStore) ApplyFix(_ context.Context, id types.ID, fix Fix, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	fix.Apply(o, now)
	return true, nil
}

func (s *MemStore) IncrementReminder(_ context.Context, id types.ID, track Track, fromCount int, lastAt *time.Time, now time.Time, esc *Escalation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	switch track {
	case TrackReadiness:
		if o.ReadinessReminderCount != fromCount || !timePtrEqual(o.ReadinessLastReminderAt, lastAt) {
			return false, nil
		}
		o.ReadinessReminderCount++
		t := now
		o.ReadinessLastReminderAt = &t
	case TrackMovement:
		if o.MovementReminderCount != fromCount || !timePtrEqual(o.MovementLastReminderAt, lastAt) {
			return false, nil
		}
		o.MovementReminderCount++
		t := now
		o.MovementLastReminderAt = &t
	default:
		return false, nil
	}
	if esc != nil {
		o.Readiness = esc.Readiness
		o.ReadinessPenaltyPct = esc.PenaltyPct
	}
	o.UpdatedAt = now
	return true, nil
}

func (s *MemStore) AcceptedAssignment(_ context.Context, orderID types.ID) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	winner := s.earliestAcceptedLocked(orderID)
	if winner == nil {
		return nil, ErrNotFound
	}
	cp := *winner
	return &cp, nil
}

// AssignmentsFor returns copies of every assignment row for an order.
// Seeding/inspection helper for tests.
func (s *MemStore) AssignmentsFor(orderID types.ID) []*Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Assignment, 0, len(s.assignments[orderID]))
	for _, a := range s.assignments[orderID] {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

func (s *MemStore) DemoteDuplicateAccepts(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	demoted := 0
	for orderID, rows := range s.assignments {
		winner := s.earliestAcceptedLocked(orderID)
		if winner == nil {
			continue
		}
		for _, a := range rows {
			if a == winner || a.IsAccepted == nil || !*a.IsAccepted {
				continue
			}
			v := false
			a.IsAccepted = &v
			t := now
			a.RejectedAt = &t
			demoted++
		}
	}
	return demoted, nil
}

// earliestAcceptedLocked picks the accepted row with the earliest
// quoted_at (nil last, ties on specialist id). Caller holds the mutex.
func (s *MemStore) earliestAcceptedLocked(orderID types.ID) *Assignment {
	var winner *Assignment
	for _, a := range s.assignments[orderID] {
		if a.IsAccepted == nil || !*a.IsAccepted {
			continue
		}
		if winner == nil || acceptedBefore(a, winner) {
			winner = a
		}
	}
	return winner
}

func acceptedBefore(a, b *Assignment) bool {
	switch {
	case a.QuotedAt == nil && b.QuotedAt == nil:
		return a.SpecialistID < b.SpecialistID
	case a.QuotedAt == nil:
		return false
	case b.QuotedAt == nil:
		return true
	case a.QuotedAt.Equal(*b.QuotedAt):
		return a.SpecialistID < b.SpecialistID
	default:
		return a.QuotedAt.Before(*b.QuotedAt)
	}
}

func (s *MemStore) SetAssignmentResponse(_ context.Context, orderID, specialistID types.ID, accepted bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments[orderID] {
		if a.SpecialistID != specialistID {
			continue
		}
		v := accepted
		a.IsAccepted = &v
		t := now
		if accepted {
			a.QuotedAt = &t
		} else {
			a.RejectedAt = &t
		}
		return nil
	}
	return ErrNotFound
}

func (s *MemStore) PromoteToUpcoming(_ context.Context, id types.ID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	o.Status = StatusUpcoming
	o.Readiness = ReadinessPending
	t := now
	o.ReadinessCheckSentAt = &t
	o.UpdatedAt = now
	return true, nil
}

func (s *MemStore) SetReadiness(_ context.Context, id types.ID, from, to ReadinessStatus, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Readiness != from {
		return false, nil
	}
	o.Readiness = to
	o.UpdatedAt = now
	return true, nil
}

func (s *MemStore) SetStage(_ context.Context, id types.ID, from, to TrackingStage, window *WaitingWindow, newStatus Status, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.TrackingStage != from {
		return false, nil
	}
	o.TrackingStage = to
	if newStatus != "" {
		o.Status = newStatus
	}
	if window != nil {
		ws, we := window.StartedAt, window.EndsAt
		o.WaitingStartedAt = &ws
		o.WaitingEndsAt = &we
	} else {
		o.WaitingStartedAt = nil
		o.WaitingEndsAt = nil
	}
	o.UpdatedAt = now
	return true, nil
}

func (s *MemStore) SetWorkerOrderPointer(_ context.Context, workerID, orderID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[workerID] = orderID
	return nil
}

func (s *MemStore) WorkerOrderPointers(_ context.Context) (map[types.ID]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ID]types.ID, len(s.pointers))
	for k, v := range s.pointers {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) ClearWorkerOrderPointer(_ context.Context, workerID, orderID types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.pointers[workerID]; !ok || cur != orderID {
		return false, nil
	}
	delete(s.pointers, workerID)
	return true, nil
}

func (s *MemStore) snapshot(keep func(*Order) bool) []*Order {
	var out []*Order
	for _, o := range s.orders {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) hasAcceptedLocked(orderID types.ID) bool {
	for _, a := range s.assignments[orderID] {
		if a.IsAccepted != nil && *a.IsAccepted {
			return true
		}
	}
	return false
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
