package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/client"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

const tokenPrefix = "session_token:"

// TokenRegistry is the server-side source of truth for live session
// tokens. A token missing here is invalid no matter what the stored
// session record says.
type TokenRegistry struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewTokenRegistry(redisClient *client.RedisClient, ttl time.Duration) *TokenRegistry {
	return &TokenRegistry{
		client: redisClient,
		ttl:    ttl,
	}
}

func (r *TokenRegistry) Issue(ctx context.Context, token, adminID string) error {
	key := tokenPrefix + token
	if err := r.client.Set(ctx, key, adminID, r.ttl); err != nil {
		util.Error("Failed to register session token",
			zap.String("admin_id", adminID),
			zap.Error(err))
		return fmt.Errorf("failed to register session token: %w", err)
	}

	util.Debug("Session token registered",
		zap.String("admin_id", adminID),
		zap.Duration("ttl", r.ttl))
	return nil
}

func (r *TokenRegistry) Validate(ctx context.Context, token string) (bool, error) {
	exists, err := r.client.Exists(ctx, tokenPrefix+token)
	if err != nil {
		return false, fmt.Errorf("failed to validate session token: %w", err)
	}
	return exists, nil
}

// Extend resets the registry TTL for a live token; false when the
// token is already gone.
func (r *TokenRegistry) Extend(ctx context.Context, token string) (bool, error) {
	key := tokenPrefix + token

	exists, err := r.client.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check session token: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := r.client.Expire(ctx, key, r.ttl); err != nil {
		return false, fmt.Errorf("failed to extend session token: %w", err)
	}
	return true, nil
}

func (r *TokenRegistry) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, tokenPrefix+token); err != nil {
		return fmt.Errorf("failed to revoke session token: %w", err)
	}

	util.Debug("Session token revoked")
	return nil
}
