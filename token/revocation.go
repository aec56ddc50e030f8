package token

import (
	"context"
	"sync"
	"time"
)

// RevokedSessionCache tracks session IDs that were signed out before their cookie expired.
type RevokedSessionCache interface {
	Add(ctx context.Context, sessionID string, until time.Time) error
	// IsRevoked reports whether sessionID was signed out. An error means the
	// answer is unknown.
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	Cleanup() // Remove expired entries
}

// InMemoryRevokedSessionCache is a simple in-memory implementation
type InMemoryRevokedSessionCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

func NewInMemoryRevokedSessionCache() *InMemoryRevokedSessionCache {
	return &InMemoryRevokedSessionCache{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithNowFunc replaces the clock used to decide whether an entry has lapsed.
func (c *InMemoryRevokedSessionCache) WithNowFunc(now func() time.Time) *InMemoryRevokedSessionCache {
	c.now = now
	return c
}

func (c *InMemoryRevokedSessionCache) Add(_ context.Context, sessionID string, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[sessionID] = until
	return nil
}

func (c *InMemoryRevokedSessionCache) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	until, exists := c.revoked[sessionID]
	return exists && !c.now().After(until), nil
}

func (c *InMemoryRevokedSessionCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, until := range c.revoked {
		if now.After(until) {
			delete(c.revoked, id)
		}
	}
}

// Len returns the number of tracked entries, expired or not.
func (c *InMemoryRevokedSessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.revoked)
}
