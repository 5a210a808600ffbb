package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daybook/daybook/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// identityCachePrefix is the Redis key prefix for resolved caller identities.
	identityCachePrefix = "auth:identity:"
	// sessionIndexPrefix maps a session id to its identity cache key for revocation.
	sessionIndexPrefix = "auth:session:"
	// DefaultIdentityTTL is the time-to-live for cached identities.
	DefaultIdentityTTL = 5 * time.Minute
)

// cachedIdentity is the JSON shape stored in Redis.
type cachedIdentity struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetIdentity retrieves a cached identity by token cache key.
// Returns nil on a miss; a corrupted or expired entry is treated as a miss.
func (c *Cache) GetIdentity(ctx context.Context, cacheKey string) (*model.Identity, error) {
	data, err := c.client.Get(ctx, identityCachePrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get identity: %w", err)
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}
	if cached.UserID == "" || !time.Now().Before(cached.ExpiresAt) {
		return nil, nil
	}

	return &model.Identity{
		UserID:    cached.UserID,
		SessionID: cached.SessionID,
		ExpiresAt: cached.ExpiresAt,
	}, nil
}

// SetIdentity caches an identity. The entry never outlives the session itself.
func (c *Cache) SetIdentity(ctx context.Context, cacheKey string, identity model.Identity, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	if remaining := time.Until(identity.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cachedIdentity{
		UserID:    identity.UserID,
		SessionID: identity.SessionID,
		ExpiresAt: identity.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, identityCachePrefix+cacheKey, data, ttl)
	pipe.Set(ctx, sessionIndexPrefix+identity.SessionID, cacheKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache identity: %w", err)
	}
	return nil
}

// DeleteSessionIdentity removes the cached identity of a revoked session.
func (c *Cache) DeleteSessionIdentity(ctx context.Context, sessionID string) error {
	indexKey := sessionIndexPrefix + sessionID

	cacheKey, err := c.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get session index: %w", err)
	}

	return c.client.Del(ctx, identityCachePrefix+cacheKey, indexKey).Err()
}
