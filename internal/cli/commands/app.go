package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/argscan/argscan/internal/cli/api"
	"github.com/argscan/argscan/internal/cli/client"
	"github.com/argscan/argscan/internal/cli/kv"
	"github.com/argscan/argscan/internal/cli/notify"
	"github.com/argscan/argscan/internal/cli/router"
	"github.com/argscan/argscan/internal/cli/session"
	"github.com/argscan/argscan/internal/cli/userconfig"
	"github.com/argscan/argscan/internal/config"
	"github.com/argscan/argscan/internal/logger"
)

// RouteAnnotation is the cobra annotation naming the view a command belongs to
const RouteAnnotation = "route"

const (
	sessionFileName = "session.json"
	sessionDBName   = "session.db"
)

// App is the runtime shared by all commands. Fields set before Setup are
// kept, which is how tests inject a configuration or a prompter.
type App struct {
	Config   *config.Config
	Out      io.Writer
	Err      io.Writer
	Prompter Prompter

	// Flags
	Server string
	Debug  bool

	Log      zerolog.Logger
	Notifier notify.Notifier
	Session  *session.Store
	Router   *router.Router
	Pipeline *client.Pipeline
	API      *api.Client

	closeStore func() error
}

// NewApp creates an app writing to the process streams
func NewApp() *App {
	return &App{Out: os.Stdout, Err: os.Stderr}
}

// Setup builds the session, router and request pipeline from configuration
func (a *App) Setup() error {
	if a.Out == nil {
		a.Out = io.Discard
	}
	if a.Err == nil {
		a.Err = io.Discard
	}

	if a.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		a.Config = cfg
	}
	if a.Server != "" {
		a.Config.API.Server = a.Server
	}

	level := a.Config.Logging.Level
	if a.Debug {
		level = "debug"
	}
	a.Log = logger.New(level, a.Config.Logging.Format, a.Err)

	if a.Notifier == nil {
		a.Notifier = notify.NewConsole(a.Err)
	}
	if a.Prompter == nil {
		a.Prompter = terminalPrompter{}
	}

	store, closer, err := openStore(a.Config.Session, a.Log)
	if err != nil {
		return err
	}
	a.closeStore = closer
	a.Session = session.New(store, a.Log)

	setTitle := func(string) {}
	if a.Out == os.Stdout {
		setTitle = router.TerminalTitle(os.Stdout)
	}
	a.Router = router.New(router.Options{
		Session:  a.Session,
		Policy:   router.Policy{RequireLogin: a.Config.Guard.RequireLogin},
		Notifier: a.Notifier,
		Logger:   a.Log,
		SetTitle: setTitle,
		OnRedirect: func(to router.Route) {
			if to.Name == router.RouteLogin {
				fmt.Fprintln(a.Err, "Run 'argscan login' to sign in.")
			}
		},
	})

	baseURL, err := a.Config.API.BaseURL()
	if err != nil {
		return err
	}
	a.Pipeline = client.New(client.Options{
		BaseURL:   baseURL,
		Timeout:   a.Config.API.Timeout,
		Session:   a.Session,
		Navigator: a.Router,
		Notifier:  a.Notifier,
		Logger:    a.Log,
	})
	a.API = api.New(a.Pipeline)

	a.Log.Debug().
		Str("api", baseURL).
		Str("session_store", a.Config.Session.Backend).
		Bool("require_login", a.Config.Guard.RequireLogin).
		Msg("CLI initialized")

	return nil
}

// Close releases the session store
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	err := a.closeStore()
	a.closeStore = nil
	return err
}

// openStore opens the configured PersistentKV backend
func openStore(cfg config.SessionConfig, log zerolog.Logger) (kv.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.SessionBackendMemory:
		return kv.NewMemory(nil), noop, nil

	case config.SessionBackendKeyring:
		return kv.NewKeyring(""), noop, nil

	case config.SessionBackendSQLite:
		path, err := sessionPath(cfg.Path, sessionDBName)
		if err != nil {
			return nil, nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		store, err := kv.NewSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.SessionBackendFile, "":
		path, err := sessionPath(cfg.Path, sessionFileName)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewFile(path).WithLogger(log), noop, nil
	}

	return nil, nil, fmt.Errorf("unknown session store %q", cfg.Backend)
}

func sessionPath(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dir, err := userconfig.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Navigate enters the view a command belongs to. Commands without a route
// annotation skip the guard.
func (a *App) Navigate(annotations map[string]string) error {
	name, ok := annotations[RouteAnnotation]
	if !ok {
		return nil
	}

	err := a.Router.Navigate(name)
	var redirect *router.RedirectError
	if errors.As(err, &redirect) && redirect.Message == "" && redirect.From == router.RouteLogin {
		return fmt.Errorf("already logged in as %s, run 'argscan logout' first", a.Session.Username())
	}
	return err
}

// Quiet reports whether err was already shown to the user and needs no
// further output
func Quiet(err error) bool {
	if client.Notified(err) {
		return true
	}
	var redirect *router.RedirectError
	return errors.As(err, &redirect) && redirect.Message != ""
}

func withRoute(route string) map[string]string {
	return map[string]string{RouteAnnotation: route}
}
