package authflowrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

type entry struct {
	state     AuthFlowState
	expiresAt time.Time
}

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]entry
	ttl     time.Duration
	nowFunc func() time.Time
}

type InMemoryOption func(*InMemoryRepo)

func WithTTL(ttl time.Duration) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

func WithNowFunc(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.nowFunc = now
	}
}

func NewInMemoryRepo(opts ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		states:  make(map[string]entry),
		ttl:     DefaultTTL,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Upsert(_ context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	r.evictExpiredLocked(now)
	r.states[state] = entry{state: *authState, expiresAt: now.Add(r.ttl)}
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.states[state]
	delete(r.states, state)
	if !ok || r.nowFunc().After(e.expiresAt) {
		return nil, ErrStateNotFound
	}
	out := e.state
	return &out, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

// Len counts stored states, expired ones included until the next write.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *InMemoryRepo) evictExpiredLocked(now time.Time) {
	for k, e := range r.states {
		if now.After(e.expiresAt) {
			delete(r.states, k)
		}
	}
}
