// README: Presence read store backed by PostgreSQL.
package presence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Snapshots assembles the presence inputs for the requested workers.
// Workers without devices, assignments, or responses still get a
// snapshot; only the base worker row is required.
func (s *Store) Snapshots(ctx context.Context, workerIDs []types.ID) ([]Snapshot, error) {
	ids := make([]string, len(workerIDs))
	for i, id := range workerIDs {
		ids[i] = string(id)
	}

	snaps := map[types.ID]*Snapshot{}
	var ordered []types.ID

	rows, err := s.db.Query(ctx, `
		SELECT id, is_active FROM workers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var active bool
		if err := rows.Scan(&id, &active); err != nil {
			return nil, err
		}
		wid := types.ID(id)
		snaps[wid] = &Snapshot{WorkerID: wid, IsActive: active}
		ordered = append(ordered, wid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.fillDevices(ctx, ids, snaps); err != nil {
		return nil, err
	}
	if err := s.fillActiveOrders(ctx, ids, snaps); err != nil {
		return nil, err
	}
	if err := s.fillResponses(ctx, ids, snaps); err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, *snaps[id])
	}
	return out, nil
}

func (s *Store) fillDevices(ctx context.Context, ids []string, snaps map[types.ID]*Snapshot) error {
	rows, err := s.db.Query(ctx, `
		SELECT worker_id, MAX(last_used_at)
		FROM worker_devices
		WHERE worker_id = ANY($1)
		GROUP BY worker_id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var lastUsed time.Time
		if err := rows.Scan(&id, &lastUsed); err != nil {
			return err
		}
		if snap, ok := snaps[types.ID(id)]; ok {
			t := lastUsed
			snap.DeviceLastUsedAt = &t
		}
	}
	return rows.Err()
}

func (s *Store) fillActiveOrders(ctx context.Context, ids []string, snaps map[types.ID]*Snapshot) error {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (a.specialist_id) a.specialist_id, o.id, o.tracking_stage
		FROM order_assignments a
		JOIN orders o ON o.id = a.order_id
		WHERE a.specialist_id = ANY($1)
		  AND a.is_accepted = TRUE
		  AND o.status IN ('upcoming', 'in_progress')
		ORDER BY a.specialist_id, o.updated_at DESC`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var workerID, orderID, stage string
		if err := rows.Scan(&workerID, &orderID, &stage); err != nil {
			return err
		}
		if snap, ok := snaps[types.ID(workerID)]; ok {
			snap.ActiveOrder = &ActiveOrder{
				OrderID: types.ID(orderID),
				Stage:   order.TrackingStage(stage),
			}
		}
	}
	return rows.Err()
}

func (s *Store) fillResponses(ctx context.Context, ids []string, snaps map[types.ID]*Snapshot) error {
	rows, err := s.db.Query(ctx, `
		SELECT specialist_id,
		       COUNT(*) FILTER (WHERE is_accepted = TRUE  AND quoted_at::date   = CURRENT_DATE),
		       COUNT(*) FILTER (WHERE is_accepted = FALSE AND rejected_at::date = CURRENT_DATE),
		       MAX(quoted_at), MAX(rejected_at)
		FROM order_assignments
		WHERE specialist_id = ANY($1)
		GROUP BY specialist_id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var accepted, rejected int
		var lastQuoted, lastRejected sql.NullTime
		if err := rows.Scan(&id, &accepted, &rejected, &lastQuoted, &lastRejected); err != nil {
			return err
		}
		snap, ok := snaps[types.ID(id)]
		if !ok {
			continue
		}
		snap.AcceptedToday = accepted
		snap.RejectedToday = rejected
		switch {
		case lastQuoted.Valid && (!lastRejected.Valid || lastQuoted.Time.After(lastRejected.Time)):
			t := lastQuoted.Time
			snap.LastResponseAt = &t
			snap.LastResponseKind = "accepted"
		case lastRejected.Valid:
			t := lastRejected.Time
			snap.LastResponseAt = &t
			snap.LastResponseKind = "rejected"
		}
	}
	return rows.Err()
}
