package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-portal-server/backend"
	"github.com/jrsteele09/go-portal-server/bookmarks"
	"github.com/jrsteele09/go-portal-server/internal/errors"
	"github.com/jrsteele09/go-portal-server/internal/httpext"
	"github.com/jrsteele09/go-portal-server/schedules"
	"github.com/jrsteele09/go-portal-server/server/workspace"
	"github.com/rs/zerolog/log"
)

type taskRequest struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type taskDoneRequest struct {
	Done *bool `json:"done"`
}

type scheduleRequest struct {
	Title    string `json:"title"`
	Memo     string `json:"memo"`
	Location string `json:"location"`
	Date     string `json:"date"`
}

// workspaceFor returns the caller's stores. The gate has already required a session.
func (s *Server) workspaceFor(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	t, ok := SessionFromContext(r.Context())
	if !ok {
		s.requireLogin(w, r)
		return nil, false
	}
	return s.workspaces.Get(t.SessionID), true
}

// respond writes v, or maps err to a status. A login redirect raised by a store
// wins over the error itself.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, code int, v any, err error) {
	if err == nil && !loginRequired(r.Context()) {
		httpext.Json(w, code, v)
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case loginRequired(r.Context()),
		errors.Is(err, errors.ErrUnauthenticated),
		errors.Is(err, errors.ErrUnauthorized):
		s.requireLogin(w, r)
	case errors.Is(err, errors.ErrInvalidInput):
		httpext.JsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, errors.ErrNotFound):
		httpext.JsonError(w, err.Error(), http.StatusNotFound)
	default:
		log.Err(err).Str("path", r.URL.Path).Int("backend_status", backend.StatusCode(err)).Msg("Backend request failed")
		httpext.JsonErrorWithDetails(w, http.StatusBadGateway, httpext.ErrorResponse{
			Error:            "backend_error",
			ErrorDescription: err.Error(),
		})
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := httpext.DecodeJson(r, v); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "malformed request body: %v", err)
	}
	return nil
}

// requestLocation is the caller's time zone from ?tz=, UTC when absent or unknown.
func requestLocation(r *http.Request) *time.Location {
	if name := r.URL.Query().Get("tz"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// MeHandler returns the backend's view of the signed-in user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := SessionFromContext(r.Context())
		if !ok || t.AccessToken == "" || t.RequiresLogin() {
			s.requireLogin(w, r)
			return
		}
		user, err := s.api.CurrentUser(r.Context(), t.AccessToken)
		s.respond(w, r, http.StatusOK, user, err)
	}
}

func (s *Server) ListTasksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		err := ws.Tasks.Fetch(r.Context())
		s.respond(w, r, http.StatusOK, ws.Tasks.Items(), err)
	}
}

func (s *Server) CreateTaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		var req taskRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		task, err := ws.Tasks.Add(r.Context(), req.Title)
		s.respond(w, r, http.StatusCreated, task, err)
	}
}

func (s *Server) UpdateTaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req taskRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		task, err := ws.Tasks.Edit(r.Context(), id, req.Title, req.Detail)
		s.respond(w, r, http.StatusOK, task, err)
	}
}

func (s *Server) SetTaskDoneHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req taskDoneRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Done == nil {
			s.writeError(w, r, errors.Wrapf(errors.ErrInvalidInput, "done is required"))
			return
		}
		task, err := ws.Tasks.SetDone(r.Context(), id, *req.Done)
		s.respond(w, r, http.StatusOK, task, err)
	}
}

func (s *Server) ToggleTaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		task, err := ws.Tasks.Toggle(r.Context(), id)
		s.respond(w, r, http.StatusOK, task, err)
	}
}

func (s *Server) DeleteTaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respond(w, r, http.StatusNoContent, nil, ws.Tasks.Remove(r.Context(), id))
	}
}

// ListSchedulesHandler refetches schedules; ?date=YYYY-MM-DD narrows the result to
// that day in the ?tz= zone.
func (s *Server) ListSchedulesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}

		var day time.Time
		if value := r.URL.Query().Get("date"); value != "" {
			d, err := time.ParseInLocation(time.DateOnly, value, requestLocation(r))
			if err != nil {
				s.writeError(w, r, errors.Wrapf(errors.ErrInvalidInput, "invalid date %q", value))
				return
			}
			day = d
		}

		err := ws.Schedules.Fetch(r.Context())
		items := ws.Schedules.Items()
		if !day.IsZero() {
			items = ws.Schedules.OnDay(day)
		}
		s.respond(w, r, http.StatusOK, items, err)
	}
}

func (r scheduleRequest) toNewSchedule(loc *time.Location) (schedules.NewSchedule, error) {
	date, err := schedules.ParseDate(r.Date, loc)
	if err != nil {
		return schedules.NewSchedule{}, err
	}
	return schedules.NewSchedule{Title: r.Title, Memo: r.Memo, Location: r.Location, Date: date}, nil
}

func (s *Server) CreateScheduleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		var req scheduleRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		n, err := req.toNewSchedule(requestLocation(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		schedule, err := ws.Schedules.Add(r.Context(), n)
		s.respond(w, r, http.StatusCreated, schedule, err)
	}
}

func (s *Server) UpdateScheduleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req scheduleRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		n, err := req.toNewSchedule(requestLocation(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		schedule, err := ws.Schedules.Edit(r.Context(), id, n)
		s.respond(w, r, http.StatusOK, schedule, err)
	}
}

func (s *Server) DeleteScheduleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respond(w, r, http.StatusNoContent, nil, ws.Schedules.Remove(r.Context(), id))
	}
}

func (s *Server) ListBookmarksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		err := ws.Bookmarks.Fetch(r.Context())
		s.respond(w, r, http.StatusOK, ws.Bookmarks.Items(), err)
	}
}

func (s *Server) CreateBookmarkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		var req bookmarks.NewBookmark
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		bookmark, err := ws.Bookmarks.Add(r.Context(), req)
		s.respond(w, r, http.StatusCreated, bookmark, err)
	}
}

func (s *Server) UpdateBookmarkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req bookmarks.NewBookmark
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		bookmark, err := ws.Bookmarks.Edit(r.Context(), id, req)
		s.respond(w, r, http.StatusOK, bookmark, err)
	}
}

func (s *Server) DeleteBookmarkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspaceFor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respond(w, r, http.StatusNoContent, nil, ws.Bookmarks.Remove(r.Context(), id))
	}
}
