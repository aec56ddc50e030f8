// Package workspace holds the per-session resource stores. Each browser session
// gets its own task, schedule and bookmark lists; idle ones are pruned.
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-portal-server/bookmarks"
	"github.com/jrsteele09/go-portal-server/resources"
	"github.com/jrsteele09/go-portal-server/schedules"
	"github.com/jrsteele09/go-portal-server/tasks"
	"github.com/rs/zerolog/log"
)

type Workspace struct {
	Tasks     *tasks.Store
	Schedules *schedules.Store
	Bookmarks *bookmarks.Store

	lastSeen time.Time
}

// Registry is a thread-safe map of session ID to Workspace.
type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace

	client  resources.Doer
	tokens  resources.TokenSource
	nav     resources.Navigator
	nowFunc func() time.Time
}

type Option func(*Registry)

func WithNowFunc(now func() time.Time) Option {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

// NewRegistry creates an empty registry. tokens and nav are shared by every
// store; they resolve the session from the request context passed to each call.
func NewRegistry(client resources.Doer, tokens resources.TokenSource, nav resources.Navigator, opts ...Option) *Registry {
	r := &Registry{
		workspaces: make(map[string]*Workspace),
		client:     client,
		tokens:     tokens,
		nav:        nav,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the workspace for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[sessionID]
	if !ok {
		ws = &Workspace{
			Tasks:     tasks.NewStore(r.client, r.tokens, r.nav),
			Schedules: schedules.NewStore(r.client, r.tokens, r.nav),
			Bookmarks: bookmarks.NewStore(r.client, r.tokens, r.nav),
		}
		r.workspaces[sessionID] = ws
	}
	ws.lastSeen = r.nowFunc()
	return ws
}

// Delete removes a workspace. Deleting an unknown session is not an error.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, sessionID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Prune drops workspaces not used within idle and returns how many were removed.
func (r *Registry) Prune(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.nowFunc().Add(-idle)
	removed := 0
	for id, ws := range r.workspaces {
		if ws.lastSeen.Before(cutoff) {
			delete(r.workspaces, id)
			removed++
		}
	}
	return removed
}

// Run prunes every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(idle); n > 0 {
				log.Debug().Int("removed", n).Int("remaining", r.Len()).Msg("Pruned idle workspaces")
			}
		}
	}
}
