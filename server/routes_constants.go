package server

const (
	RouteIndex = "/{$}"
	RouteLogin = "/login"

	// Auth routes are never gated.
	RouteAuthPrefix = "/api/auth/"
	RouteSignIn     = "/api/auth/signin/google"
	RouteCallback   = "/api/auth/callback/google"
	RouteSignOut    = "/api/auth/signout"
	RouteSession    = "/api/auth/session"

	RouteAPIPrefix = "/api/"
	RouteMe        = "/api/me"

	RouteTasks      = "/api/tasks"
	RouteTask       = "/api/tasks/{id}"
	RouteTaskToggle = "/api/tasks/{id}/toggle"

	RouteSchedules = "/api/schedules"
	RouteSchedule  = "/api/schedules/{id}"

	RouteBookmarks = "/api/bookmarks"
	RouteBookmark  = "/api/bookmarks/{id}"

	RouteStatic  = "/static/{file...}"
	RouteFavicon = "/favicon.ico"
	RouteRobots  = "/robots.txt"
)

// gateExclusions are path prefixes, without the leading slash, reachable without a
// session.
var gateExclusions = []string{
	"login",
	"api/auth",
	"static",
	"favicon.ico",
	"robots.txt",
}
