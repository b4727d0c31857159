package sqlite

import (
	"context"
	"fmt"
	"time"
)

// TryLease claims the session lease for owner until ttl elapses. It succeeds
// when no lease exists, the current one expired, or owner already holds it.
func (s *Store) TryLease(ctx context.Context, sessionID, owner string, ttl time.Duration) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	now := time.Now()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO session_locks (session_id, owner, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		 WHERE session_locks.expires_at < ? OR session_locks.owner = excluded.owner`,
		sessionID, owner, toMillis(now.Add(ttl)), toMillis(now),
	)
	if err != nil {
		return false, fmt.Errorf("claim lease %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim lease %s: %w", sessionID, err)
	}
	return n == 1, nil
}

// ReleaseLease drops the lease if owner still holds it.
func (s *Store) ReleaseLease(ctx context.Context, sessionID, owner string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM session_locks WHERE session_id = ? AND owner = ?`, sessionID, owner,
	); err != nil {
		return fmt.Errorf("release lease %s: %w", sessionID, err)
	}
	return nil
}
