package router

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/argscan/argscan/internal/cli/notify"
)

type stubSession struct {
	loggedIn bool
	admin    bool
}

func (s *stubSession) IsLoggedIn() bool { return s.loggedIn }
func (s *stubSession) IsAdmin() bool    { return s.admin }

func TestGuard_AdminRoute(t *testing.T) {
	admin := Route{Name: RouteAdmin, RequiresAdmin: true}

	tests := []struct {
		name     string
		session  stubSession
		expected Decision
	}{
		{
			name:     "anonymous goes to login",
			session:  stubSession{},
			expected: Decision{Redirect: RouteLogin, Level: notify.LevelWarning, Message: msgLoginFirst},
		},
		{
			name:     "regular user goes home",
			session:  stubSession{loggedIn: true},
			expected: Decision{Redirect: RouteHome, Level: notify.LevelError, Message: msgAdminRequired},
		},
		{
			name:     "admin is allowed",
			session:  stubSession{loggedIn: true, admin: true},
			expected: Decision{Allow: true},
		},
	}

	for _, policy := range []Policy{{}, {RequireLogin: true}} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g := NewGuard(&tt.session, policy)
				require.Equal(t, tt.expected, g.Check(admin))
			})
		}
	}
}

func TestGuard_RequireLoginPolicy(t *testing.T) {
	home := Route{Name: RouteHome, Title: "Home"}
	login := Route{Name: RouteLogin, AllowAnonymous: true}

	// disabled: anonymous users may view authenticated routes
	g := NewGuard(&stubSession{}, Policy{})
	require.True(t, g.Check(home).Allow)
	require.True(t, g.Check(login).Allow)
	require.True(t, NewGuard(&stubSession{loggedIn: true}, Policy{}).Check(login).Allow)

	// enabled
	g = NewGuard(&stubSession{}, Policy{RequireLogin: true})
	require.Equal(t, Decision{Redirect: RouteLogin, Level: notify.LevelWarning, Message: msgLoginFirst}, g.Check(home))
	require.True(t, g.Check(login).Allow)

	g = NewGuard(&stubSession{loggedIn: true}, Policy{RequireLogin: true})
	require.True(t, g.Check(home).Allow)
	require.Equal(t, Decision{Redirect: RouteHome}, g.Check(login))
}

func TestRoute_DisplayTitle(t *testing.T) {
	require.Equal(t, "Home - ARG Identification System", Route{Name: RouteHome, Title: "Home"}.DisplayTitle())
	require.Equal(t, BaseTitle, Route{Name: RouteLogin}.DisplayTitle())
}

type harness struct {
	router    *Router
	session   *stubSession
	notes     *notify.Recorder
	titles    []string
	redirects []string
}

func newHarness(policy Policy) *harness {
	h := &harness{session: &stubSession{}, notes: &notify.Recorder{}}
	h.router = New(Options{
		Session:    h.session,
		Policy:     policy,
		Notifier:   h.notes,
		Logger:     zerolog.Nop(),
		SetTitle:   func(title string) { h.titles = append(h.titles, title) },
		OnRedirect: func(to Route) { h.redirects = append(h.redirects, to.Name) },
	})
	return h
}

func TestNavigate_Allowed(t *testing.T) {
	h := newHarness(Policy{})

	require.NoError(t, h.router.Navigate(RouteUpload))
	require.Equal(t, RouteUpload, h.router.Current())
	require.Equal(t, []string{"File Upload - ARG Identification System"}, h.titles)
	require.Zero(t, h.notes.Len())
	require.Empty(t, h.redirects)
	require.False(t, h.router.IsLoginView())
}

func TestNavigate_UnknownRouteFallsBackToHome(t *testing.T) {
	h := newHarness(Policy{})

	require.NoError(t, h.router.Navigate("no-such-view"))
	require.Equal(t, RouteHome, h.router.Current())
	require.Equal(t, []string{"Home - ARG Identification System"}, h.titles)
}

func TestNavigate_AdminRedirects(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		h := newHarness(Policy{})

		err := h.router.Navigate(RouteAdmin)

		var redirect *RedirectError
		require.True(t, errors.As(err, &redirect))
		require.Equal(t, RouteAdmin, redirect.From)
		require.Equal(t, RouteLogin, redirect.To)
		require.Equal(t, msgLoginFirst, err.Error())

		require.True(t, h.router.IsLoginView())
		require.Equal(t, []notify.Message{{Level: notify.LevelWarning, Text: msgLoginFirst}}, h.notes.Messages())
		require.Equal(t, []string{"Administration - ARG Identification System", BaseTitle}, h.titles)
		require.Equal(t, []string{RouteLogin}, h.redirects)
	})

	t.Run("regular user", func(t *testing.T) {
		h := newHarness(Policy{})
		h.session.loggedIn = true

		err := h.router.Navigate(RouteAdmin)

		var redirect *RedirectError
		require.True(t, errors.As(err, &redirect))
		require.Equal(t, RouteHome, redirect.To)
		require.Equal(t, RouteHome, h.router.Current())
		require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: msgAdminRequired}}, h.notes.Messages())
	})

	t.Run("admin", func(t *testing.T) {
		h := newHarness(Policy{})
		h.session.loggedIn, h.session.admin = true, true

		require.NoError(t, h.router.Navigate(RouteAdmin))
		require.Equal(t, RouteAdmin, h.router.Current())
		require.Zero(t, h.notes.Len())
	})
}

func TestNavigate_LoginWhileLoggedInIsSilent(t *testing.T) {
	h := newHarness(Policy{RequireLogin: true})
	h.session.loggedIn = true

	err := h.router.Navigate(RouteLogin)

	var redirect *RedirectError
	require.True(t, errors.As(err, &redirect))
	require.Equal(t, RouteHome, redirect.To)
	require.Equal(t, "redirected from login to home", err.Error())
	require.Zero(t, h.notes.Len())
}

func TestRedirectToLogin(t *testing.T) {
	h := newHarness(Policy{})
	require.NoError(t, h.router.Navigate(RouteHistory))

	h.router.RedirectToLogin()
	h.router.RedirectToLogin()

	require.True(t, h.router.IsLoginView())
	require.Equal(t, []string{RouteLogin, RouteLogin}, h.redirects)
	require.Equal(t, BaseTitle, h.titles[len(h.titles)-1])
	require.Zero(t, h.notes.Len())
}

func TestWriteTitle(t *testing.T) {
	var buf bytes.Buffer
	writeTitle(&buf)("History - ARG Identification System")
	require.Equal(t, "\x1b]0;History - ARG Identification System\x07", buf.String())

	// not a terminal
	TerminalTitle(nil)("ignored")
}
