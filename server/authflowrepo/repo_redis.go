package authflowrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/internal/redisstore"
)

const flowKeyPrefix = "portal:authflow:"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo lets the callback land on a different instance than the one that
// started the login.
type RedisRepo struct {
	redis *redisstore.Service
	ttl   time.Duration
}

func NewRedisRepo(redis *redisstore.Service, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepo{redis: redis, ttl: ttl}
}

func (r *RedisRepo) Upsert(ctx context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}
	data, err := json.Marshal(authState)
	if err != nil {
		return fmt.Errorf("failed to encode auth flow state: %w", err)
	}
	return r.redis.Set(ctx, flowKeyPrefix+state, data, r.ttl)
}

func (r *RedisRepo) Take(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}
	raw, err := r.redis.GetDel(ctx, flowKeyPrefix+state)
	if errors.Is(err, redisstore.ErrNotFound) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}

	var authState AuthFlowState
	if err := json.Unmarshal([]byte(raw), &authState); err != nil {
		return nil, fmt.Errorf("failed to decode auth flow state: %w", err)
	}
	return &authState, nil
}

func (r *RedisRepo) Delete(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	return r.redis.Delete(ctx, flowKeyPrefix+state)
}
