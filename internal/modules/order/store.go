// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const orderColumns = `
	id, company_id, customer_id, status, tracking_stage,
	waiting_started_at, waiting_ends_at,
	specialist_readiness_status, readiness_check_sent_at,
	readiness_reminder_count, readiness_last_reminder_at,
	movement_reminder_count, movement_last_reminder_at,
	readiness_penalty_percentage,
	booking_date, booking_time, created_at, updated_at`

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *PgStore) ListAll(ctx context.Context) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *PgStore) ListAwaitingReadiness(ctx context.Context) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.status = 'upcoming'
		  AND o.specialist_readiness_status = 'pending'
		  AND EXISTS (
			SELECT 1 FROM order_assignments a
			WHERE a.order_id = o.id AND a.is_accepted = TRUE
		  )
		ORDER BY o.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *PgStore) ListAwaitingMovement(ctx context.Context) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.status = 'upcoming'
		  AND o.specialist_readiness_status = 'ready'
		  AND o.tracking_stage = ''
		  AND EXISTS (
			SELECT 1 FROM order_assignments a
			WHERE a.order_id = o.id AND a.is_accepted = TRUE
		  )
		ORDER BY o.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *PgStore) ApplyFix(ctx context.Context, id types.ID, fix Fix, now time.Time) (bool, error) {
	var status, stage, readiness *string
	if fix.SetStatus != nil {
		v := string(*fix.SetStatus)
		status = &v
	}
	if fix.SetStage != nil {
		v := string(*fix.SetStage)
		stage = &v
	}
	if fix.SetReadiness != nil {
		v := string(*fix.SetReadiness)
		readiness = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = COALESCE($1, status),
		    tracking_stage = COALESCE($2, tracking_stage),
		    waiting_started_at = CASE WHEN $3 THEN NULL ELSE waiting_started_at END,
		    waiting_ends_at = CASE WHEN $3 THEN NULL ELSE waiting_ends_at END,
		    specialist_readiness_status = COALESCE($4, specialist_readiness_status),
		    readiness_penalty_percentage = CASE WHEN $5 THEN 0 ELSE readiness_penalty_percentage END,
		    updated_at = $6
		WHERE id = $7`,
		status, stage, fix.ClearWaiting, readiness, fix.ResetPenalty, now, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) IncrementReminder(ctx context.Context, id types.ID, track Track, fromCount int, lastAt *time.Time, now time.Time, esc *Escalation) (bool, error) {
	var escReadiness *string
	var escPenalty *int
	if esc != nil {
		v := string(esc.Readiness)
		escReadiness = &v
		escPenalty = &esc.PenaltyPct
	}
	var q string
	switch track {
	case TrackReadiness:
		q = `
		UPDATE orders
		SET readiness_reminder_count = readiness_reminder_count + 1,
		    readiness_last_reminder_at = $1,
		    specialist_readiness_status = COALESCE($2, specialist_readiness_status),
		    readiness_penalty_percentage = COALESCE($3, readiness_penalty_percentage),
		    updated_at = $1
		WHERE id = $4
		  AND readiness_reminder_count = $5
		  AND readiness_last_reminder_at IS NOT DISTINCT FROM $6`
	case TrackMovement:
		q = `
		UPDATE orders
		SET movement_reminder_count = movement_reminder_count + 1,
		    movement_last_reminder_at = $1,
		    specialist_readiness_status = COALESCE($2, specialist_readiness_status),
		    readiness_penalty_percentage = COALESCE($3, readiness_penalty_percentage),
		    updated_at = $1
		WHERE id = $4
		  AND movement_reminder_count = $5
		  AND movement_last_reminder_at IS NOT DISTINCT FROM $6`
	default:
		return false, fmt.Errorf("unknown reminder track %q", track)
	}
	tag, err := s.db.Exec(ctx, q, now, escReadiness, escPenalty, string(id), fromCount, lastAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) AcceptedAssignment(ctx context.Context, orderID types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT order_id, specialist_id, is_accepted, quoted_price, quoted_at, rejected_at
		FROM order_assignments
		WHERE order_id = $1 AND is_accepted = TRUE
		ORDER BY quoted_at ASC NULLS LAST, specialist_id
		LIMIT 1`, string(orderID),
	)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *PgStore) SetAssignmentResponse(ctx context.Context, orderID, specialistID types.ID, accepted bool, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE order_assignments
		SET is_accepted = $1,
		    quoted_at = CASE WHEN $1 THEN $2 ELSE quoted_at END,
		    rejected_at = CASE WHEN $1 THEN rejected_at ELSE $2 END
		WHERE order_id = $3 AND specialist_id = $4`,
		accepted, now, string(orderID), string(specialistID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) DemoteDuplicateAccepts(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE order_assignments a
		SET is_accepted = FALSE, rejected_at = $1
		FROM (
			SELECT order_id, specialist_id,
			       ROW_NUMBER() OVER (
			           PARTITION BY order_id
			           ORDER BY quoted_at ASC NULLS LAST, specialist_id
			       ) AS rank
			FROM order_assignments
			WHERE is_accepted = TRUE
		) ranked
		WHERE a.order_id = ranked.order_id
		  AND a.specialist_id = ranked.specialist_id
		  AND ranked.rank > 1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) PromoteToUpcoming(ctx context.Context, id types.ID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'upcoming',
		    specialist_readiness_status = 'pending',
		    readiness_check_sent_at = $1,
		    updated_at = $1
		WHERE id = $2 AND status = 'pending'`,
		now, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) SetReadiness(ctx context.Context, id types.ID, from, to ReadinessStatus, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET specialist_readiness_status = $1, updated_at = $2
		WHERE id = $3 AND specialist_readiness_status = $4`,
		string(to), now, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) SetStage(ctx context.Context, id types.ID, from, to TrackingStage, window *WaitingWindow, newStatus Status, now time.Time) (bool, error) {
	var ws, we *time.Time
	if window != nil {
		ws, we = &window.StartedAt, &window.EndsAt
	}
	var status *string
	if newStatus != "" {
		v := string(newStatus)
		status = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET tracking_stage = $1,
		    status = COALESCE($2, status),
		    waiting_started_at = $3,
		    waiting_ends_at = $4,
		    updated_at = $5
		WHERE id = $6 AND tracking_stage = $7`,
		string(to), status, ws, we, now, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) SetWorkerOrderPointer(ctx context.Context, workerID, orderID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE workers SET current_order_id = $1 WHERE id = $2`,
		string(orderID), string(workerID),
	)
	return err
}

func (s *PgStore) WorkerOrderPointers(ctx context.Context) (map[types.ID]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, current_order_id FROM workers WHERE current_order_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[types.ID]types.ID{}
	for rows.Next() {
		var workerID, orderID string
		if err := rows.Scan(&workerID, &orderID); err != nil {
			return nil, err
		}
		out[types.ID(workerID)] = types.ID(orderID)
	}
	return out, rows.Err()
}

func (s *PgStore) ClearWorkerOrderPointer(ctx context.Context, workerID, orderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE workers SET current_order_id = NULL
		WHERE id = $1 AND current_order_id = $2`,
		string(workerID), string(orderID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var waitingStartedAt, waitingEndsAt, checkSentAt, readinessLastAt, movementLastAt sql.NullTime
	var bookingDate, bookingTime sql.NullString

	err := row.Scan(
		&o.ID, &o.CompanyID, &o.CustomerID, &o.Status, &o.TrackingStage,
		&waitingStartedAt, &waitingEndsAt,
		&o.Readiness, &checkSentAt,
		&o.ReadinessReminderCount, &readinessLastAt,
		&o.MovementReminderCount, &movementLastAt,
		&o.ReadinessPenaltyPct,
		&bookingDate, &bookingTime, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.WaitingStartedAt = toTimePtr(waitingStartedAt)
	o.WaitingEndsAt = toTimePtr(waitingEndsAt)
	o.ReadinessCheckSentAt = toTimePtr(checkSentAt)
	o.ReadinessLastReminderAt = toTimePtr(readinessLastAt)
	o.MovementLastReminderAt = toTimePtr(movementLastAt)
	o.BookingDate = bookingDate.String
	o.BookingTime = bookingTime.String
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]*Order, error) {
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanAssignment(row rowScanner) (*Assignment, error) {
	var a Assignment
	var accepted sql.NullBool
	var price sql.NullInt64
	var quotedAt, rejectedAt sql.NullTime

	err := row.Scan(&a.OrderID, &a.SpecialistID, &accepted, &price, &quotedAt, &rejectedAt)
	if err != nil {
		return nil, err
	}
	if accepted.Valid {
		v := accepted.Bool
		a.IsAccepted = &v
	}
	if price.Valid {
		v := price.Int64
		a.QuotedPrice = &v
	}
	a.QuotedAt = toTimePtr(quotedAt)
	a.RejectedAt = toTimePtr(rejectedAt)
	return &a, nil
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
