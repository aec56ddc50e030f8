package server

import (
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteSignIn, ChainMiddleware(s.SignInHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteSignIn, ChainMiddleware(s.SignInHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...)) // form_post response mode
	s.RegisterRouteFunc("GET "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))

	// API routes
	s.RegisterRouteFunc("OPTIONS "+RouteAPIPrefix, ChainMiddleware(preflightHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteTasks, ChainMiddleware(s.ListTasksHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteTasks, ChainMiddleware(s.CreateTaskHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("PUT "+RouteTask, ChainMiddleware(s.UpdateTaskHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("PATCH "+RouteTask, ChainMiddleware(s.SetTaskDoneHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteTask, ChainMiddleware(s.DeleteTaskHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteTaskToggle, ChainMiddleware(s.ToggleTaskHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteSchedules, ChainMiddleware(s.ListSchedulesHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteSchedules, ChainMiddleware(s.CreateScheduleHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("PUT "+RouteSchedule, ChainMiddleware(s.UpdateScheduleHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteSchedule, ChainMiddleware(s.DeleteScheduleHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteBookmarks, ChainMiddleware(s.ListBookmarksHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteBookmarks, ChainMiddleware(s.CreateBookmarkHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("PUT "+RouteBookmark, ChainMiddleware(s.UpdateBookmarkHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteBookmark, ChainMiddleware(s.DeleteBookmarkHandler(), s.APIMiddleware()...))

	// Static files
	s.RegisterRouteFunc("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler("/static/"), s.StaticMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteFavicon, ChainMiddleware(s.serveFileHandler("/"), s.StaticMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteRobots, ChainMiddleware(s.serveFileHandler("/"), s.StaticMiddleware()...))
}

// serveFileHandler streams the embedded file named by the request path minus prefix.
func (s *Server) serveFileHandler(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, prefix)
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			logError(r.Method, filePath, err)
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func preflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
