package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-portal-server/bookmarks"
	"github.com/jrsteele09/go-portal-server/schedules"
	"github.com/jrsteele09/go-portal-server/tasks"
	"golang.org/x/sync/errgroup"
)

type indexPageData struct {
	AppName   string
	Name      string
	Email     string
	Picture   string
	Today     time.Time
	Tasks     []tasks.Task
	Schedules []schedules.Schedule
	Bookmarks []bookmarks.Bookmark
	Errors    []string
	SignOut   string
}

// IndexHandler renders the dashboard: every task, today's schedule and the bookmarks.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		// Each store records its own failure; the page shows whatever loaded.
		var g errgroup.Group
		g.Go(func() error { return ws.Tasks.Fetch(ctx) })
		g.Go(func() error { return ws.Schedules.Fetch(ctx) })
		g.Go(func() error { return ws.Bookmarks.Fetch(ctx) })
		_ = g.Wait()

		if loginRequired(ctx) {
			s.requireLogin(w, r)
			return
		}

		t, _ := SessionFromContext(ctx)
		today := s.nowFunc().In(requestLocation(r))
		data := indexPageData{
			AppName:   s.config.GetAppName(),
			Name:      t.Name,
			Email:     t.Email,
			Picture:   t.Picture,
			Today:     today,
			Tasks:     ws.Tasks.Items(),
			Schedules: ws.Schedules.OnDay(today),
			Bookmarks: ws.Bookmarks.Items(),
			SignOut:   RouteSignOut,
		}
		for _, msg := range []string{ws.Tasks.Err(), ws.Schedules.Err(), ws.Bookmarks.Err()} {
			if msg != "" {
				data.Errors = append(data.Errors, msg)
			}
		}
		s.renderTemplate(w, r, s.indexTemplate, data)
	}
}
