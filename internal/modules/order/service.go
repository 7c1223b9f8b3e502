// README: Order service implements the client-side writes the sweeps reconcile after.
package order

import (
	"context"
	"errors"
	"time"

	"fieldops/internal/types"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type AcceptCommand struct {
	OrderID      types.ID
	SpecialistID types.ID
}

type RejectCommand struct {
	OrderID      types.ID
	SpecialistID types.ID
}

type ReadinessCommand struct {
	OrderID      types.ID
	SpecialistID types.ID
	Ready        bool
}

type StageCommand struct {
	OrderID types.ID
	Stage   TrackingStage
	// WaitingMinutes sizes the waiting window; required for StageWaiting,
	// ignored otherwise.
	WaitingMinutes int
}

// Accept records the specialist's acceptance and opens the readiness
// check. At most one assignment per order may be accepted: a competing
// accept fails with ErrConflict here, and a racing pair that slips past
// this check is demoted back to one by the reconciler.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	if cmd.OrderID == "" || cmd.SpecialistID == "" {
		return ErrBadRequest
	}
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return ErrInvalidState
	}
	existing, err := s.repo.AcceptedAssignment(ctx, cmd.OrderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && existing.SpecialistID != cmd.SpecialistID {
		return ErrConflict
	}
	now := time.Now()
	if err := s.repo.SetAssignmentResponse(ctx, cmd.OrderID, cmd.SpecialistID, true, now); err != nil {
		return err
	}
	if o.Status == StatusPending {
		if _, err := s.repo.PromoteToUpcoming(ctx, cmd.OrderID, now); err != nil {
			return err
		}
	}
	return s.repo.SetWorkerOrderPointer(ctx, cmd.SpecialistID, cmd.OrderID)
}

func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	if cmd.OrderID == "" || cmd.SpecialistID == "" {
		return ErrBadRequest
	}
	if _, err := s.repo.Get(ctx, cmd.OrderID); err != nil {
		return err
	}
	return s.repo.SetAssignmentResponse(ctx, cmd.OrderID, cmd.SpecialistID, false, time.Now())
}

// AnswerReadiness records the specialist's response to a pending
// readiness check.
func (s *Service) AnswerReadiness(ctx context.Context, cmd ReadinessCommand) error {
	if cmd.OrderID == "" {
		return ErrBadRequest
	}
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Readiness != ReadinessPending {
		return ErrInvalidState
	}
	to := ReadinessReady
	if !cmd.Ready {
		to = ReadinessNotReady
	}
	ok, err := s.repo.SetReadiness(ctx, cmd.OrderID, ReadinessPending, to, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// AdvanceStage moves the tracking stage forward. Status side effects are
// written in the same row update so the write path keeps the
// stage/status invariants true on its own:
// moving starts the job, payment_received completes the order.
func (s *Service) AdvanceStage(ctx context.Context, cmd StageCommand) error {
	if cmd.OrderID == "" {
		return ErrBadRequest
	}
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status != StatusUpcoming && o.Status != StatusInProgress {
		return ErrInvalidState
	}
	if !CanAdvanceStage(o.TrackingStage, cmd.Stage) {
		return ErrInvalidState
	}

	now := time.Now()
	var window *WaitingWindow
	var newStatus Status
	switch cmd.Stage {
	case StageWaiting:
		if cmd.WaitingMinutes <= 0 {
			return ErrBadRequest
		}
		window = &WaitingWindow{
			StartedAt: now,
			EndsAt:    now.Add(time.Duration(cmd.WaitingMinutes) * time.Minute),
		}
	case StageMoving:
		newStatus = StatusInProgress
	case StagePaymentReceived:
		newStatus = StatusCompleted
	}

	ok, err := s.repo.SetStage(ctx, cmd.OrderID, o.TrackingStage, cmd.Stage, window, newStatus, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.repo.Get(ctx, id)
}
