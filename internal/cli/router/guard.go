package router

import "github.com/argscan/argscan/internal/cli/notify"

const (
	msgLoginFirst    = "please log in first"
	msgAdminRequired = "admin permission required"
)

// Session is the part of the session store the guard reads
type Session interface {
	IsLoggedIn() bool
	IsAdmin() bool
}

// Policy toggles the optional guard rules
type Policy struct {
	// RequireLogin redirects anonymous users away from authenticated routes
	// and logged-in users away from the login route
	RequireLogin bool
}

// Decision is the outcome of a guard check
type Decision struct {
	Allow    bool
	Redirect string // target route when not allowed

	// Level and Message are empty for silent redirects
	Level   notify.Level
	Message string
}

// Guard evaluates route requirements against the session
type Guard struct {
	session Session
	policy  Policy
}

// NewGuard creates a guard
func NewGuard(session Session, policy Policy) *Guard {
	return &Guard{session: session, policy: policy}
}

// Check decides whether a transition to route may proceed
func (g *Guard) Check(route Route) Decision {
	loggedIn := g.session.IsLoggedIn()

	if g.policy.RequireLogin {
		if route.RequiresAuth() && !loggedIn {
			return Decision{Redirect: RouteLogin, Level: notify.LevelWarning, Message: msgLoginFirst}
		}
		if route.Name == RouteLogin && loggedIn {
			return Decision{Redirect: RouteHome}
		}
	}

	// the admin check applies regardless of policy
	if route.RequiresAdmin {
		if !loggedIn {
			return Decision{Redirect: RouteLogin, Level: notify.LevelWarning, Message: msgLoginFirst}
		}
		if !g.session.IsAdmin() {
			return Decision{Redirect: RouteHome, Level: notify.LevelError, Message: msgAdminRequired}
		}
	}

	return Decision{Allow: true}
}
