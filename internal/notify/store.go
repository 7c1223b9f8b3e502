// README: Device token store backed by PostgreSQL.
package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops/internal/types"
)

type PgTokenStore struct {
	db *pgxpool.Pool
}

func NewPgTokenStore(db *pgxpool.Pool) *PgTokenStore {
	return &PgTokenStore{db: db}
}

func (s *PgTokenStore) TokensFor(ctx context.Context, recipientID types.ID) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token FROM worker_devices
		WHERE worker_id = $1
		ORDER BY last_used_at DESC`, string(recipientID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RegisterDevice inserts or refreshes a device token. last_used_at is
// the recency signal the presence deriver reads.
func (s *PgTokenStore) RegisterDevice(ctx context.Context, workerID types.ID, token string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO worker_devices (worker_id, token, last_used_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (worker_id, token)
		DO UPDATE SET last_used_at = EXCLUDED.last_used_at`,
		string(workerID), token, now,
	)
	return err
}
