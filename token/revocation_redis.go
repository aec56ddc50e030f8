package token

import (
	"context"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/internal/redisstore"
	"github.com/rs/zerolog/log"
)

const revokedKeyPrefix = "portal:revoked:"

// RedisRevokedSessionCache shares revocations between server instances. Entries
// expire on their own via the key TTL.
type RedisRevokedSessionCache struct {
	redis *redisstore.Service
	now   func() time.Time
}

func NewRedisRevokedSessionCache(redis *redisstore.Service) *RedisRevokedSessionCache {
	return &RedisRevokedSessionCache{redis: redis, now: time.Now}
}

func (c *RedisRevokedSessionCache) Add(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	return c.redis.Set(ctx, revokedKeyPrefix+sessionID, "1", ttl)
}

func (c *RedisRevokedSessionCache) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	revoked, err := c.redis.Exists(ctx, revokedKeyPrefix+sessionID)
	if err != nil {
		log.Err(err).Str("session_id", sessionID).Msg("revocation lookup failed")
		return false, errors.Wrapf(errors.ErrRevocationLookup, "session %s: %v", sessionID, err)
	}
	return revoked, nil
}

// Cleanup is a no-op; Redis expires the keys.
func (c *RedisRevokedSessionCache) Cleanup() {}
