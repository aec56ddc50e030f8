// Package tasks is the task list: a resources.Store of backend tasks plus the
// completion toggle, which updates optimistically.
package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/internal/utils"
	"github.com/jrsteele09/go-portal-server/resources"
)

const ResourceName = "tasks"

type Task struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Detail    *string   `json:"detail"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (t Task) ItemID() int64 { return t.ID }

// DetailText returns the detail, or "" when the backend stored none.
func (t Task) DetailText() string { return utils.Value(t.Detail) }

type writeRequest struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type toggleRequest struct {
	Done bool `json:"done"`
}

type Store struct {
	*resources.Store[Task]
}

func NewStore(client resources.Doer, tokens resources.TokenSource, nav resources.Navigator) *Store {
	coll := resources.NewCollection[Task](client, ResourceName)
	return &Store{Store: resources.NewStore(ResourceName, coll, tokens, nav)}
}

// Add creates a task with an empty detail.
func (s *Store) Add(ctx context.Context, title string) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, errors.Wrapf(errors.ErrInvalidInput, "title is required")
	}
	return s.Create(ctx, writeRequest{Title: title})
}

// Edit replaces the title and detail of id.
func (s *Store) Edit(ctx context.Context, id int64, title, detail string) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, errors.Wrapf(errors.ErrInvalidInput, "title is required")
	}
	return s.Update(ctx, id, writeRequest{Title: title, Detail: detail})
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.Delete(ctx, id)
}

// Toggle flips Done locally, then PATCHes it. Any failure, including a 401,
// restores the previous value.
func (s *Store) Toggle(ctx context.Context, id int64) (Task, error) {
	return s.setDone(ctx, id, func(t Task) bool { return !t.Done })
}

// SetDone is Toggle with an explicit target value.
func (s *Store) SetDone(ctx context.Context, id int64, done bool) (Task, error) {
	return s.setDone(ctx, id, func(Task) bool { return done })
}

func (s *Store) setDone(ctx context.Context, id int64, next func(Task) bool) (Task, error) {
	apply := func(t Task) Task {
		t.Done = next(t)
		return t
	}
	return s.Optimistic(ctx, id, apply, func(ctx context.Context, access string, tentative Task) (Task, error) {
		return s.Collection().Patch(ctx, access, id, toggleRequest{Done: tentative.Done})
	})
}
