package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	revokedTokenPrefix = "revoked:"
	revokedUserPrefix  = "revoked_user:"
)

// RedisRevocationStore shares revocations between instances. Keys expire with
// the tokens they cover.
type RedisRevocationStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRevocationStore(client redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, now: time.Now}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedTokenPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) RevokeUser(ctx context.Context, userID uuid.UUID, at, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedUserPrefix+userID.String(), at.UnixNano(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) UserRevokedAt(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	v, err := s.client.Get(ctx, revokedUserPrefix+userID.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("check user revocation: %w", err)
	}
	return time.Unix(0, v), true, nil
}
