package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revocations tracks logged-out token ids until they would have expired anyway.
type Revocations interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NopRevocations is used when no Redis is configured; logout only clears the cookie.
type NopRevocations struct{}

func (NopRevocations) Revoke(context.Context, string, time.Time) error { return nil }

func (NopRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisRevocations stores revoked token ids in Redis with TTL equal to the remaining token life.
type RedisRevocations struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevocations wraps an existing client.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, now: time.Now}
}

func revocationKey(jti string) string {
	return fmt.Sprintf("revoked:token:%s", jti)
}

// Revoke records jti until the given instant. Already-expired tokens are ignored.
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
