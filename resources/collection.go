// Package resources mirrors backend REST collections into in-memory lists that
// follow the server's answers: create prepends, update replaces by ID, delete filters.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-portal-server/backend"
)

// Item is anything the backend identifies with an integer ID.
type Item interface {
	ItemID() int64
}

// Doer performs one bearer-authenticated JSON call. *backend.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path, access string, body, out any) error
}

// Collection is a typed view of one backend collection such as /tasks/.
type Collection[T Item] struct {
	client Doer
	path   string
}

// NewCollection binds name (e.g. "tasks") to client. Paths carry the trailing
// slash the backend routes expect.
func NewCollection[T Item](client Doer, name string) *Collection[T] {
	return &Collection[T]{
		client: client,
		path:   "/" + strings.Trim(name, "/") + "/",
	}
}

func (c *Collection[T]) itemPath(id int64) string {
	return fmt.Sprintf("%s%d/", c.path, id)
}

// List fetches the collection, accepting both bare and paginated responses.
func (c *Collection[T]) List(ctx context.Context, access string) ([]T, error) {
	var raw json.RawMessage
	if err := c.client.Do(ctx, http.MethodGet, c.path, access, nil, &raw); err != nil {
		return nil, err
	}
	return backend.DecodeList[T](raw)
}

func (c *Collection[T]) Create(ctx context.Context, access string, body any) (T, error) {
	var created T
	err := c.client.Do(ctx, http.MethodPost, c.path, access, body, &created)
	return created, err
}

// Replace issues a PUT.
func (c *Collection[T]) Replace(ctx context.Context, access string, id int64, body any) (T, error) {
	var updated T
	err := c.client.Do(ctx, http.MethodPut, c.itemPath(id), access, body, &updated)
	return updated, err
}

// Patch issues a PATCH with a partial body.
func (c *Collection[T]) Patch(ctx context.Context, access string, id int64, body any) (T, error) {
	var updated T
	err := c.client.Do(ctx, http.MethodPatch, c.itemPath(id), access, body, &updated)
	return updated, err
}

func (c *Collection[T]) Delete(ctx context.Context, access string, id int64) error {
	return c.client.Do(ctx, http.MethodDelete, c.itemPath(id), access, nil, nil)
}

// Path returns the collection path, e.g. "/tasks/".
func (c *Collection[T]) Path() string {
	return c.path
}
