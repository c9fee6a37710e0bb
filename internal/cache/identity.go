package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eralens/eralens/internal/model"
)

const (
	// identityCachePrefix is the Redis key prefix for resolved identities.
	identityCachePrefix = "identity:token:"
	// identityCacheTTL bounds how long a revoked token can keep resolving.
	identityCacheTTL = 5 * time.Minute
)

// cachedIdentity is the identity as stored in Redis. The admin flag is
// deliberately absent: it is derived from configuration on every request.
type cachedIdentity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// GetIdentity retrieves a cached identity by token fingerprint.
// Returns nil on cache miss. Callers must key by fingerprint, never by
// the raw token.
func (c *Cache) GetIdentity(ctx context.Context, fingerprint string) (*model.Identity, error) {
	key := identityCachePrefix + fingerprint

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.Identity{UserID: cached.UserID, Email: cached.Email}, nil
}

// SetIdentity caches a resolved identity under the token fingerprint.
func (c *Cache) SetIdentity(ctx context.Context, fingerprint string, id *model.Identity) error {
	key := identityCachePrefix + fingerprint

	data, err := json.Marshal(cachedIdentity{UserID: id.UserID, Email: id.Email})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	return c.client.Set(ctx, key, data, identityCacheTTL).Err()
}

// DeleteIdentity removes a cached identity.
func (c *Cache) DeleteIdentity(ctx context.Context, fingerprint string) error {
	return c.client.Del(ctx, identityCachePrefix+fingerprint).Err()
}
