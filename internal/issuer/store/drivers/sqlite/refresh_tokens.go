package sqlite

import (
	"context"
	"time"
)

type refreshTokensRepo struct {
	s *Store
}

func (r *refreshTokensRepo) Put(ctx context.Context, tokenID, subject string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.s.opTimeout)
	defer cancel()

	now := r.s.now()
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token_id, subject, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token_id) DO UPDATE SET
			subject = excluded.subject,
			expires_at = excluded.expires_at`,
		tokenID, subject, now.Add(ttl).UnixMilli(), now.UnixMilli(),
	)
	return mapErr(err)
}

// Get ignores expired rows that housekeeping has not swept yet.
func (r *refreshTokensRepo) Get(ctx context.Context, tokenID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.s.opTimeout)
	defer cancel()

	var subject string
	err := r.s.db.QueryRowContext(ctx,
		`SELECT subject FROM refresh_tokens WHERE token_id = ? AND expires_at > ?`,
		tokenID, r.s.now().UnixMilli(),
	).Scan(&subject)
	if err != nil {
		return "", mapErr(err)
	}
	return subject, nil
}

func (r *refreshTokensRepo) Delete(ctx context.Context, tokenID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.s.opTimeout)
	defer cancel()

	_, err := r.s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_id = ?`, tokenID)
	return mapErr(err)
}
