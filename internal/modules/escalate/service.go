// README: Readiness/movement escalation scheduler; reminders with a hard cap, penalties on exhaustion.
package escalate

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"fieldops/internal/config"
	"fieldops/internal/modules/order"
	"fieldops/internal/notify"
	"fieldops/internal/types"
)

// perItemTimeout bounds each update+dispatch pair so one hung
// notification call cannot stall the batch.
const perItemTimeout = 10 * time.Second

type Service struct {
	repo     order.Repository
	notifier notify.Dispatcher
	guard    Guard // optional; nil disables the redis fence
	cfg      config.SweepConfig
}

func NewService(repo order.Repository, notifier notify.Dispatcher, guard Guard, cfg config.SweepConfig) *Service {
	return &Service{repo: repo, notifier: notifier, guard: guard, cfg: cfg}
}

// Run executes one escalation pass over both reminder tracks. The tracks
// are mutually exclusive per order: an order is listed for readiness
// while the check is pending, and for movement only once readiness is
// confirmed with no stage reported.
//
// Counter increments are written before dispatch; a failed dispatch is
// recorded as success=false without rollback. Reminders are best-effort
// sent, not guaranteed sent.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	if s.guard != nil {
		ok, err := s.guard.AcquireSweep(ctx)
		if err != nil {
			log.Printf("escalate: sweep lock: %v", err)
		} else if !ok {
			return &Summary{Skipped: true, Results: []Result{}}, nil
		} else {
			defer func() {
				if err := s.guard.ReleaseSweep(ctx); err != nil {
					log.Printf("escalate: release sweep lock: %v", err)
				}
			}()
		}
	}

	sum := &Summary{Results: []Result{}}

	readiness, err := s.repo.ListAwaitingReadiness(ctx)
	if err != nil {
		return nil, fmt.Errorf("escalate: list awaiting readiness: %w", err)
	}
	for _, o := range readiness {
		if res, sent := s.remind(ctx, o, order.TrackReadiness); sent {
			sum.PendingReminders++
			sum.Results = append(sum.Results, res)
		}
	}

	movement, err := s.repo.ListAwaitingMovement(ctx)
	if err != nil {
		return nil, fmt.Errorf("escalate: list awaiting movement: %w", err)
	}
	for _, o := range movement {
		if res, sent := s.remind(ctx, o, order.TrackMovement); sent {
			sum.MovementReminders++
			sum.Results = append(sum.Results, res)
		}
	}

	return sum, nil
}

func (s *Service) remind(ctx context.Context, o *order.Order, track order.Track) (Result, bool) {
	now := time.Now()
	count, lastAt := o.ReadinessReminderCount, o.ReadinessLastReminderAt
	if track == order.TrackMovement {
		count, lastAt = o.MovementReminderCount, o.MovementLastReminderAt
	}

	if count >= s.cfg.MaxReminders {
		return Result{}, false
	}
	cooldown := time.Duration(s.cfg.ReminderCooldownMinutes) * time.Minute
	if lastAt != nil && now.Sub(*lastAt) < cooldown {
		return Result{}, false
	}

	if s.guard != nil {
		ok, err := s.guard.MarkReminder(ctx, o.ID, track)
		if err != nil {
			log.Printf("escalate: reminder marker %s/%s: %v", o.ID, track, err)
		} else if !ok {
			// Another trigger claimed this reminder inside the window.
			return Result{}, false
		}
	}

	newCount := count + 1
	var esc *order.Escalation
	if newCount >= s.cfg.MaxReminders {
		esc = s.escalation(track)
	}

	opCtx, cancel := context.WithTimeout(ctx, perItemTimeout)
	defer cancel()

	applied, err := s.repo.IncrementReminder(opCtx, o.ID, track, count, lastAt, now, esc)
	if err != nil {
		return Result{OrderID: o.ID, Type: track, ReminderCount: count, Error: err.Error()}, true
	}
	if !applied {
		// Lost the race against a concurrent sweep; that sweep owns the
		// reminder.
		return Result{}, false
	}

	res := Result{OrderID: o.ID, Type: track, ReminderCount: newCount}
	assignment, err := s.repo.AcceptedAssignment(opCtx, o.ID)
	if err != nil {
		res.Error = "no accepted assignment: " + err.Error()
		return res, true
	}

	title, body := s.message(o, track, newCount)
	outcomes, err := s.notifier.Notify(opCtx, []types.ID{assignment.SpecialistID}, title, body, map[string]string{
		"order_id": string(o.ID),
		"type":     string(track) + "_reminder",
		"reminder": strconv.Itoa(newCount),
	})
	if err != nil {
		res.Error = err.Error()
		return res, true
	}
	for _, out := range outcomes {
		if out.RecipientID == assignment.SpecialistID {
			res.Success = out.Success
			res.Error = out.Error
		}
	}
	return res, true
}

func (s *Service) escalation(track order.Track) *order.Escalation {
	if track == order.TrackReadiness {
		return &order.Escalation{
			Readiness:  order.ReadinessNoResponse,
			PenaltyPct: s.cfg.ReadinessPenaltyPct,
		}
	}
	return &order.Escalation{
		Readiness:  order.ReadinessNeedsReassignment,
		PenaltyPct: s.cfg.MovementPenaltyPct,
	}
}

func (s *Service) message(o *order.Order, track order.Track, count int) (string, string) {
	if track == order.TrackReadiness {
		return "Readiness check",
			fmt.Sprintf("Reminder %d of %d: please confirm you are ready for the booking on %s %s.",
				count, s.cfg.MaxReminders, o.BookingDate, o.BookingTime)
	}
	return "Time to head out",
		fmt.Sprintf("Reminder %d of %d: you confirmed readiness but have not started moving yet.",
			count, s.cfg.MaxReminders)
}
