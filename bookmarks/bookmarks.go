// Package bookmarks is the sidebar link list backed by the /bookmarks/ collection.
package bookmarks

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/resources"
)

const ResourceName = "bookmarks"

type Bookmark struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	IconEmoji string    `json:"iconEmoji"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (b Bookmark) ItemID() int64 { return b.ID }

type NewBookmark struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	IconEmoji string `json:"iconEmoji"`
	Color     string `json:"color"`
}

// Validate trims the fields and requires a name and an absolute http(s) URL.
func (n *NewBookmark) Validate() error {
	n.Name = strings.TrimSpace(n.Name)
	n.URL = strings.TrimSpace(n.URL)
	if n.Name == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "name is required")
	}
	u, err := url.Parse(n.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Wrapf(errors.ErrInvalidInput, "url must be an absolute http(s) URL")
	}
	return nil
}

type Store struct {
	*resources.Store[Bookmark]
}

func NewStore(client resources.Doer, tokens resources.TokenSource, nav resources.Navigator) *Store {
	coll := resources.NewCollection[Bookmark](client, ResourceName)
	return &Store{Store: resources.NewStore(ResourceName, coll, tokens, nav)}
}

func (s *Store) Add(ctx context.Context, n NewBookmark) (Bookmark, error) {
	if err := n.Validate(); err != nil {
		return Bookmark{}, err
	}
	return s.Create(ctx, n)
}

func (s *Store) Edit(ctx context.Context, id int64, n NewBookmark) (Bookmark, error) {
	if err := n.Validate(); err != nil {
		return Bookmark{}, err
	}
	return s.Update(ctx, id, n)
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.Delete(ctx, id)
}
