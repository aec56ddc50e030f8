package resources

import (
	"context"
	"slices"
	"sync"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/rs/zerolog/log"
)

// TokenSource yields the current Session Token, already brought up to date by the
// refresh orchestrator. ok is false when there is no session at all.
type TokenSource interface {
	Session(ctx context.Context) (t token.Token, ok bool)
}

// Navigator sends the user to the login page.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// Store keeps a local copy of one collection. All methods are safe for concurrent
// use; network calls run without holding the lock.
type Store[T Item] struct {
	name   string
	coll   *Collection[T]
	tokens TokenSource
	nav    Navigator

	mu       sync.Mutex
	items    []T
	inflight int
	errMsg   string
}

func NewStore[T Item](name string, coll *Collection[T], tokens TokenSource, nav Navigator) *Store[T] {
	return &Store[T]{
		name:   name,
		coll:   coll,
		tokens: tokens,
		nav:    nav,
		items:  []T{},
	}
}

// Items returns a copy of the local list.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Find returns the local copy of id.
func (s *Store[T]) Find(id int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Loading reports whether any call is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Err returns the message of the most recent failure, or "" when the last
// operation succeeded.
func (s *Store[T]) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Fetch replaces the local list with the server's. Without a usable session it
// redirects to login and makes no call.
func (s *Store[T]) Fetch(ctx context.Context) error {
	access, ok := s.accessToken(ctx)
	if !ok {
		s.nav.RedirectToLogin(ctx)
		return s.fail(ctx, "fetch", errors.ErrUnauthenticated)
	}

	s.begin()
	items, err := s.coll.List(ctx, access)

	s.mu.Lock()
	s.inflight--
	if err == nil {
		s.items = items
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail(ctx, "fetch", err)
	}
	return nil
}

// Create posts body and prepends the server's item.
func (s *Store[T]) Create(ctx context.Context, body any) (T, error) {
	return s.mutate(ctx, "create", func(access string) (T, error) {
		return s.coll.Create(ctx, access, body)
	}, func(created T) {
		s.items = append([]T{created}, s.items...)
	})
}

// Update PUTs body to id and replaces the local copy with the server's.
func (s *Store[T]) Update(ctx context.Context, id int64, body any) (T, error) {
	return s.mutate(ctx, "update", func(access string) (T, error) {
		return s.coll.Replace(ctx, access, id, body)
	}, func(updated T) {
		s.replaceLocked(id, updated)
	})
}

// Delete removes id on the server, then locally.
func (s *Store[T]) Delete(ctx context.Context, id int64) error {
	_, err := s.mutate(ctx, "delete", func(access string) (T, error) {
		var zero T
		return zero, s.coll.Delete(ctx, access, id)
	}, func(T) {
		s.items = slices.DeleteFunc(s.items, func(it T) bool { return it.ItemID() == id })
	})
	return err
}

// Optimistic shows tentative(current) for id immediately, then calls commit. On
// success the server's item replaces the tentative one; on any failure the item
// is restored to its prior value. An id missing from the local list triggers one
// Fetch before it is reported as not found.
func (s *Store[T]) Optimistic(ctx context.Context, id int64, tentative func(T) T, commit func(ctx context.Context, access string, tentative T) (T, error)) (T, error) {
	var zero T

	access, ok := s.accessToken(ctx)
	if !ok {
		return zero, s.fail(ctx, "optimistic", errors.ErrUnauthenticated)
	}

	if _, found := s.Find(id); !found {
		if err := s.Fetch(ctx); err != nil {
			return zero, err
		}
	}

	s.mu.Lock()
	s.errMsg = ""
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		log.Warn().Str("resource", s.name).Int64("id", id).Msg("Item not found")
		return zero, errors.Wrapf(errors.ErrNotFound, "%s %d", s.name, id)
	}
	snapshot := s.items[i]
	next := tentative(snapshot)
	s.items[i] = next
	s.inflight++
	s.mu.Unlock()

	confirmed, err := commit(ctx, access, next)

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.replaceLocked(id, snapshot)
	} else {
		s.replaceLocked(id, confirmed)
	}
	s.mu.Unlock()

	if err != nil {
		return zero, s.fail(ctx, "optimistic", err)
	}
	return confirmed, nil
}

// Collection exposes the underlying collection for optimistic commits.
func (s *Store[T]) Collection() *Collection[T] {
	return s.coll
}

// Reset drops the local list and error.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []T{}
	s.errMsg = ""
}

func (s *Store[T]) mutate(ctx context.Context, op string, call func(access string) (T, error), apply func(T)) (T, error) {
	var zero T

	access, ok := s.accessToken(ctx)
	if !ok {
		return zero, s.fail(ctx, op, errors.ErrUnauthenticated)
	}

	s.begin()
	result, err := call(access)

	s.mu.Lock()
	s.inflight--
	if err == nil {
		apply(result)
	}
	s.mu.Unlock()

	if err != nil {
		return zero, s.fail(ctx, op, err)
	}
	return result, nil
}

func (s *Store[T]) accessToken(ctx context.Context) (string, bool) {
	t, ok := s.tokens.Session(ctx)
	if !ok || t.RequiresLogin() || t.AccessToken == "" {
		return "", false
	}
	return t.AccessToken, true
}

func (s *Store[T]) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.errMsg = ""
}

// fail records err and, for a backend 401, redirects to login. No retry.
func (s *Store[T]) fail(ctx context.Context, op string, err error) error {
	log.Err(err).
		Str("resource", s.name).
		Str("op", op).
		Int("status", backend.StatusCode(err)).
		Msg("Resource operation failed")

	s.mu.Lock()
	s.errMsg = err.Error()
	s.mu.Unlock()

	if backend.IsUnauthorized(err) {
		s.nav.RedirectToLogin(ctx)
	}
	return err
}

func (s *Store[T]) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(it T) bool { return it.ItemID() == id })
}

func (s *Store[T]) replaceLocked(id int64, item T) {
	if i := s.indexOf(id); i >= 0 {
		s.items[i] = item
	}
}
