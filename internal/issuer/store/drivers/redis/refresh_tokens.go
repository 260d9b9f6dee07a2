package redis

import (
	"context"
	"time"
)

type refreshTokensRepo struct {
	s *Store
}

func key(tokenID string) string { return keyPrefix + tokenID }

func (r *refreshTokensRepo) Put(ctx context.Context, tokenID, subject string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.s.opTimeout)
	defer cancel()
	return mapErr(r.s.client.Set(ctx, key(tokenID), subject, ttl).Err())
}

func (r *refreshTokensRepo) Get(ctx context.Context, tokenID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.s.opTimeout)
	defer cancel()

	subject, err := r.s.client.Get(ctx, key(tokenID)).Result()
	if err != nil {
		return "", mapErr(err)
	}
	return subject, nil
}

func (r *refreshTokensRepo) Delete(ctx context.Context, tokenID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.s.opTimeout)
	defer cancel()
	return mapErr(r.s.client.Del(ctx, key(tokenID)).Err())
}
