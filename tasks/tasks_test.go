package tasks_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/internal/utils"
	"github.com/jrsteele09/go-portal-server/resources/resourcesfake"
	"github.com/jrsteele09/go-portal-server/tasks"
	"github.com/jrsteele09/go-portal-server/token"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

// tasksAPI records every request and answers from a script keyed by "METHOD path".
type tasksAPI struct {
	mu       sync.Mutex
	requests []recorded
	status   map[string]int
	bodies   map[string]string
}

func newTasksAPI(t *testing.T) (*tasksAPI, *backend.Client) {
	api := &tasksAPI{
		status: map[string]int{},
		bodies: map[string]string{
			"GET /tasks/":       `[{"id":42,"title":"Write report","detail":null,"done":false},{"id":7,"title":"Call Bob","detail":"re: invoice","done":true}]`,
			"POST /tasks/":      `{"id":43,"title":"New","detail":"","done":false}`,
			"PUT /tasks/42/":    `{"id":42,"title":"Write final report","detail":"by Friday","done":false}`,
			"PATCH /tasks/42/":  `{"id":42,"title":"Write report","detail":null,"done":true}`,
			"DELETE /tasks/42/": ``,
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		rec := recorded{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		api.mu.Lock()
		api.requests = append(api.requests, rec)
		status, body := api.status[key], api.bodies[key]
		api.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if body == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return api, backend.NewClient(srv.URL)
}

func (a *tasksAPI) fail(key string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status[key] = status
}

func (a *tasksAPI) last() recorded {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func (a *tasksAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func session() *resourcesfake.FakeTokenSource {
	return resourcesfake.NewFakeTokenSource(token.Token{SessionID: "sess-1", AccessToken: "A1", RefreshToken: "R1"})
}

func loaded(t *testing.T) (*tasks.Store, *tasksAPI, *resourcesfake.FakeNavigator) {
	t.Helper()
	api, client := newTasksAPI(t)
	nav := &resourcesfake.FakeNavigator{}
	store := tasks.NewStore(client, session(), nav)
	require.NoError(t, store.Fetch(context.Background()))
	return store, api, nav
}

func TestStore_Fetch(t *testing.T) {
	store, _, _ := loaded(t)

	items := store.Items()
	require.Len(t, items, 2)
	require.Equal(t, "", items[0].DetailText())
	require.Equal(t, "re: invoice", items[1].DetailText())
}

func TestStore_Add(t *testing.T) {
	store, api, _ := loaded(t)

	task, err := store.Add(context.Background(), "  New ")
	require.NoError(t, err)
	require.Equal(t, int64(43), task.ID)
	require.Equal(t, map[string]any{"title": "New", "detail": ""}, api.last().Body)
	require.Equal(t, int64(43), store.Items()[0].ID)

	_, err = store.Add(context.Background(), "   ")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestStore_Edit(t *testing.T) {
	store, api, _ := loaded(t)

	task, err := store.Edit(context.Background(), 42, "Write final report", "by Friday")
	require.NoError(t, err)
	require.Equal(t, "by Friday", task.DetailText())
	require.Equal(t, http.MethodPut, api.last().Method)
	require.Equal(t, "/tasks/42/", api.last().Path)

	found, _ := store.Find(42)
	require.Equal(t, "Write final report", found.Title)
}

func TestStore_Remove401(t *testing.T) {
	store, api, nav := loaded(t)
	api.fail("DELETE /tasks/42/", http.StatusUnauthorized)

	err := store.Remove(context.Background(), 42)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
	require.Equal(t, 1, nav.Redirects())
	_, stillThere := store.Find(42)
	require.True(t, stillThere)
	require.Equal(t, 2, api.count())
}

func TestStore_Remove(t *testing.T) {
	store, _, _ := loaded(t)

	require.NoError(t, store.Remove(context.Background(), 42))
	_, found := store.Find(42)
	require.False(t, found)
	require.Len(t, store.Items(), 1)
}

func TestStore_Toggle(t *testing.T) {
	store, api, _ := loaded(t)

	task, err := store.Toggle(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, task.Done)
	require.Equal(t, http.MethodPatch, api.last().Method)
	require.Equal(t, map[string]any{"done": true}, api.last().Body)
}

func TestStore_ToggleRollsBack(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusUnauthorized} {
		store, api, nav := loaded(t)
		api.fail("PATCH /tasks/42/", status)

		_, err := store.Toggle(context.Background(), 42)
		require.Error(t, err)

		found, _ := store.Find(42)
		require.False(t, found.Done, "status %d", status)
		require.NotEmpty(t, store.Err())
		if status == http.StatusUnauthorized {
			require.Equal(t, 1, nav.Redirects())
		}
	}
}

func TestStore_ToggleUnknownTask(t *testing.T) {
	store, api, _ := loaded(t)

	_, err := store.Toggle(context.Background(), 999)
	require.ErrorIs(t, err, errors.ErrNotFound)
	require.Equal(t, 2, api.count())
	require.Equal(t, http.MethodGet, api.last().Method)
}

func TestStore_ToggleBeforeFetch(t *testing.T) {
	api, client := newTasksAPI(t)
	store := tasks.NewStore(client, session(), &resourcesfake.FakeNavigator{})

	task, err := store.Toggle(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, task.Done)
	require.Equal(t, 2, api.count())
	require.Equal(t, http.MethodPatch, api.last().Method)
	require.Equal(t, map[string]any{"done": true}, api.last().Body)
}

func TestStore_SetDone(t *testing.T) {
	store, api, _ := loaded(t)

	task, err := store.SetDone(context.Background(), 42, true)
	require.NoError(t, err)
	require.True(t, task.Done)
	require.Equal(t, "/tasks/42/", api.last().Path)
	require.Equal(t, map[string]any{"done": true}, api.last().Body)
}

func TestTask_DetailText(t *testing.T) {
	require.Equal(t, "", tasks.Task{}.DetailText())
	require.Equal(t, "re: invoice", tasks.Task{Detail: utils.Ptr("re: invoice")}.DetailText())
}
