// Package redisstore wraps a go-redis client with the small key/value surface the
// portal's shared stores need.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("redis key not found")

type Service struct {
	client *redis.Client
}

// NewService connects to addr and pings it. A nil Service is returned when addr is
// empty or the server is unreachable, so callers can fall back to memory.
func NewService(ctx context.Context, addr, password string) *Service {
	if addr == "" {
		log.Warn().Msg("Redis URL not configured - using in-memory stores")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", addr).
			Msg("Failed to establish Redis connection - using in-memory stores")
		_ = client.Close()
		return nil
	}

	return &Service{client: client}
}

// NewServiceFromClient wraps an existing client.
func NewServiceFromClient(client *redis.Client) *Service {
	return &Service{client: client}
}

// Set stores a value in Redis with an optional expiration
func (s *Service) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := s.client.Set(ctx, key, value, expiration).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("expiration", expiration).
			Msg("Redis SET operation failed")
		return err
	}
	return nil
}

// Get retrieves a value from Redis
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis GET operation failed")
		return "", err
	}
	return val, nil
}

// GetDel atomically reads and removes a key
func (s *Service) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis GETDEL operation failed")
		return "", err
	}
	return val, nil
}

// Exists reports whether key is present
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a key from Redis
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}
