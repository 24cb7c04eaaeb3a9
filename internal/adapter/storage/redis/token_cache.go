package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// TokenCache implements ports.TokenCache using Redis, so bearer tokens
// survive process restarts and are shared across horizontally-scaled
// instances instead of each one exhausting the acquirer's token rate limit.
type TokenCache struct {
	client *goredis.Client
	prefix string
}

// NewTokenCache creates a new Redis-backed bearer token cache.
func NewTokenCache(client *goredis.Client) *TokenCache {
	return &TokenCache{
		client: client,
		prefix: "acquirer_token:",
	}
}

// Get retrieves the cached token for an acquirer.
// Returns nil, nil if no token is cached.
func (c *TokenCache) Get(ctx context.Context, acquirer domain.Acquirer) (*ports.BearerToken, error) {
	val, err := c.client.Get(ctx, c.prefix+string(acquirer)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis token get: %w", err)
	}

	token := &ports.BearerToken{}
	if err := json.Unmarshal(val, token); err != nil {
		return nil, fmt.Errorf("unmarshal cached token: %w", err)
	}
	return token, nil
}

// Set stores a token. The Redis TTL tracks the token expiry so stale entries
// evict themselves.
func (c *TokenCache) Set(ctx context.Context, acquirer domain.Acquirer, token *ports.BearerToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refusing to cache already-expired token for %s", acquirer)
	}

	if err := c.client.Set(ctx, c.prefix+string(acquirer), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis token set: %w", err)
	}
	return nil
}

// AcquireRefreshLock takes the refresh lock via SET NX so only one instance
// hits the acquirer's token endpoint at a time. Returns false when another
// caller holds it.
func (c *TokenCache) AcquireRefreshLock(ctx context.Context, acquirer domain.Acquirer, ttl time.Duration) (bool, error) {
	key := c.prefix + "refresh_lock:" + string(acquirer)
	ok, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis token refresh lock: %w", err)
	}
	return ok, nil
}
