// README: Consistency reconciler; detects invariant violations and applies idempotent fixes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

// perItemTimeout bounds each corrective write so one stuck row cannot
// stall the whole pass.
const perItemTimeout = 10 * time.Second

type Service struct {
	repo order.Repository
}

func NewService(repo order.Repository) *Service {
	return &Service{repo: repo}
}

// Run executes one reconciliation pass. filter, when non-nil, restricts
// the pass to a single order (targeted re-check). Categories are handled
// independently: a row failure is recorded and the pass continues. Only
// a store-wide read failure aborts the pass.
//
// Running the pass twice with no intervening writes fixes nothing on the
// second run; every corrective write is keyed off current field values.
func (s *Service) Run(ctx context.Context, filter *types.ID) (*Summary, error) {
	now := time.Now()
	sum := newSummary(now)

	for _, cat := range order.Categories {
		orders, err := s.load(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("reconcile: load orders: %w", err)
		}
		check := order.Checks[cat]
		for _, o := range orders {
			fix, violated := check(o, now)
			if !violated {
				continue
			}
			if err := s.apply(ctx, o.ID, fix, now); err != nil {
				sum.TotalErrors++
				sum.Errors = append(sum.Errors, ErrorRecord{OrderID: o.ID, Category: cat, Error: err.Error()})
				continue
			}
			sum.TotalFixed++
			sum.Categories[string(cat)]++
			sum.Fixes = append(sum.Fixes, FixRecord{OrderID: o.ID, Category: cat})
		}
	}

	if filter == nil {
		s.demoteDuplicateAccepts(ctx, now, sum)
		s.clearStalePointers(ctx, sum)
	}

	if sum.TotalFixed > 0 || sum.TotalErrors > 0 || sum.DuplicateAcceptsDemoted > 0 {
		log.Printf("reconcile: fixed=%d errors=%d stale_pointers=%d duplicate_accepts=%d",
			sum.TotalFixed, sum.TotalErrors, sum.StalePointersCleared, sum.DuplicateAcceptsDemoted)
	}
	return sum, nil
}

func (s *Service) load(ctx context.Context, filter *types.ID) ([]*order.Order, error) {
	if filter == nil {
		return s.repo.ListAll(ctx)
	}
	o, err := s.repo.Get(ctx, *filter)
	if err != nil {
		return nil, err
	}
	return []*order.Order{o}, nil
}

func (s *Service) apply(ctx context.Context, id types.ID, fix order.Fix, now time.Time) error {
	opCtx, cancel := context.WithTimeout(ctx, perItemTimeout)
	defer cancel()
	applied, err := s.repo.ApplyFix(opCtx, id, fix, now)
	if err != nil {
		return err
	}
	if !applied {
		// Row vanished between read and write; nothing to repair.
		return errors.New("row no longer exists")
	}
	return nil
}

// demoteDuplicateAccepts restores the one-accepted-assignment rule: a
// racing pair of accepts can leave two accepted rows on one order, and
// all but the earliest quoted_at are demoted. Failures are diagnostic
// only and never fail the pass.
func (s *Service) demoteDuplicateAccepts(ctx context.Context, now time.Time, sum *Summary) {
	demoted, err := s.repo.DemoteDuplicateAccepts(ctx, now)
	if err != nil {
		log.Printf("reconcile: demote duplicate accepts: %v", err)
		return
	}
	sum.DuplicateAcceptsDemoted = demoted
}

// clearStalePointers repairs the denormalized worker current_order_id
// cache: a pointer at a terminal or missing order is dropped. Pointer
// failures are diagnostic only and never fail the pass.
func (s *Service) clearStalePointers(ctx context.Context, sum *Summary) {
	pointers, err := s.repo.WorkerOrderPointers(ctx)
	if err != nil {
		log.Printf("reconcile: list worker pointers: %v", err)
		return
	}
	for workerID, orderID := range pointers {
		o, err := s.repo.Get(ctx, orderID)
		if err != nil && !errors.Is(err, order.ErrNotFound) {
			log.Printf("reconcile: check pointer %s -> %s: %v", workerID, orderID, err)
			continue
		}
		if err == nil && !o.Status.Terminal() {
			continue
		}
		cleared, err := s.repo.ClearWorkerOrderPointer(ctx, workerID, orderID)
		if err != nil {
			log.Printf("reconcile: clear pointer %s -> %s: %v", workerID, orderID, err)
			continue
		}
		if cleared {
			sum.StalePointersCleared++
		}
	}
}
