// Package router maps CLI commands onto named views, enforcing access rules on
// every transition and tracking the current view for the request pipeline.
package router

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/argscan/argscan/internal/cli/notify"
)

// maxHops bounds redirect chains
const maxHops = 4

// RedirectError is returned by Navigate when the guard sent the user elsewhere
type RedirectError struct {
	From    string
	To      string
	Message string
}

func (e *RedirectError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("redirected from %s to %s", e.From, e.To)
}

// Options configures a Router
type Options struct {
	Routes   []Route // defaults to DefaultRoutes
	Session  Session
	Policy   Policy
	Notifier notify.Notifier
	Logger   zerolog.Logger

	// SetTitle receives the title on every transition; defaults to a no-op
	SetTitle func(title string)
	// OnRedirect runs whenever a transition lands on a different route than
	// requested, including forced redirects to login
	OnRedirect func(to Route)
}

// Router resolves routes, runs the guard and tracks the current view
type Router struct {
	routes     map[string]Route
	guard      *Guard
	notifier   notify.Notifier
	setTitle   func(string)
	onRedirect func(Route)
	log        zerolog.Logger

	mu      sync.RWMutex
	current string
}

// New creates a router
func New(opts Options) *Router {
	routes := opts.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	table := make(map[string]Route, len(routes))
	for _, r := range routes {
		table[r.Name] = r
	}

	setTitle := opts.SetTitle
	if setTitle == nil {
		setTitle = func(string) {}
	}

	return &Router{
		routes:     table,
		guard:      NewGuard(opts.Session, opts.Policy),
		notifier:   opts.Notifier,
		setTitle:   setTitle,
		onRedirect: opts.OnRedirect,
		log:        opts.Logger,
	}
}

// Lookup returns the named route. Unknown names resolve to home.
func (r *Router) Lookup(name string) Route {
	if route, ok := r.routes[name]; ok {
		return route
	}
	if home, ok := r.routes[RouteHome]; ok {
		return home
	}
	return Route{Name: RouteHome}
}

// Navigate transitions to the named route. When the guard redirects, the
// current view becomes the redirect target and a *RedirectError is returned.
func (r *Router) Navigate(name string) error {
	requested := r.Lookup(name)
	route := requested

	var first *Decision
	for hop := 0; ; hop++ {
		r.setTitle(route.DisplayTitle())

		d := r.guard.Check(route)
		if d.Allow || hop >= maxHops {
			break
		}
		if first == nil {
			first = &d
		}
		if d.Message != "" && r.notifier != nil {
			r.notifier.Notify(d.Level, d.Message)
		}

		r.log.Debug().
			Str("from", route.Name).
			Str("to", d.Redirect).
			Msg("Navigation redirected")
		route = r.Lookup(d.Redirect)
	}

	r.mu.Lock()
	r.current = route.Name
	r.mu.Unlock()

	if first == nil {
		return nil
	}
	if r.onRedirect != nil {
		r.onRedirect(route)
	}
	return &RedirectError{From: requested.Name, To: route.Name, Message: first.Message}
}

// Current returns the current view name, empty before the first transition
func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// IsLoginView reports whether the login view is active
func (r *Router) IsLoginView() bool {
	return r.Current() == RouteLogin
}

// RedirectToLogin forces the login view without consulting the guard
func (r *Router) RedirectToLogin() {
	login := r.Lookup(RouteLogin)

	r.mu.Lock()
	r.current = login.Name
	r.mu.Unlock()

	r.setTitle(login.DisplayTitle())
	if r.onRedirect != nil {
		r.onRedirect(login)
	}
}

// TerminalTitle returns a title setter that emits an OSC 0 sequence to out
// when it is a terminal, and does nothing otherwise
func TerminalTitle(out *os.File) func(string) {
	if out == nil || !term.IsTerminal(int(out.Fd())) {
		return func(string) {}
	}
	return writeTitle(out)
}

func writeTitle(w io.Writer) func(string) {
	return func(title string) {
		fmt.Fprintf(w, "\x1b]0;%s\x07", title)
	}
}
