package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRevocationStore persists revoked sessions in the revoked_session table
// so logouts survive restarts and are shared between instances.
type PGRevocationStore struct {
	pool *pgxpool.Pool
}

func NewPGRevocationStore(pool *pgxpool.Pool) *PGRevocationStore {
	return &PGRevocationStore{pool: pool}
}

func (s *PGRevocationStore) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revoked_session (session_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING`, sessionID, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *PGRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_session WHERE session_id = $1)`, sessionID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return revoked, nil
}

// Purge deletes revocations of sessions that have expired.
func (s *PGRevocationStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM revoked_session WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
