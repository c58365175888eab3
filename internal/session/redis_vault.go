package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/client"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

// RedisVault persists the encoded session in Redis. Entries carry a
// TTL slightly past the session lifetime as a backstop; authoritative
// expiry is still the record's own ExpiresAt.
type RedisVault struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewRedisVault(redisClient *client.RedisClient, sessionTTL time.Duration) *RedisVault {
	return &RedisVault{
		client: redisClient,
		ttl:    sessionTTL + time.Hour,
	}
}

func (v *RedisVault) Get(ctx context.Context, key string) (string, error) {
	value, err := v.client.Get(ctx, key)
	if err != nil {
		if client.IsNotFound(err, key) {
			return "", ErrNotFound
		}
		util.Error("Failed to read vault key",
			zap.String("key", key),
			zap.Error(err))
		return "", err
	}
	return value, nil
}

func (v *RedisVault) Set(ctx context.Context, key, value string) error {
	if err := v.client.Set(ctx, key, value, v.ttl); err != nil {
		util.Error("Failed to write vault key",
			zap.String("key", key),
			zap.Error(err))
		return err
	}
	return nil
}

func (v *RedisVault) Delete(ctx context.Context, key string) error {
	return v.client.Del(ctx, key)
}

func (v *RedisVault) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	removed, err := v.client.DeleteByPrefix(ctx, prefix)
	if err != nil {
		util.Error("Failed to sweep vault namespace",
			zap.String("prefix", prefix),
			zap.Error(err))
		return 0, err
	}

	util.Debug("Vault namespace swept",
		zap.String("prefix", prefix),
		zap.Int("removed", removed))
	return removed, nil
}
