package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/argscan/argscan/internal/cli/userconfig"
)

const (
	// DefaultServer is the service origin used when nothing else is configured
	DefaultServer = "http://localhost:8080"

	// DefaultAPIBase is the API prefix appended to the server origin
	DefaultAPIBase = "/api"

	// DefaultRequestTimeout bounds every call; large enough for genome uploads
	DefaultRequestTimeout = 5 * time.Minute
)

// Session store backends
const (
	SessionBackendFile    = "file"
	SessionBackendKeyring = "keyring"
	SessionBackendSQLite  = "sqlite"
	SessionBackendMemory  = "memory"
)

// Config holds all configuration for the CLI
type Config struct {
	// API Configuration
	API APIConfig

	// Session persistence Configuration
	Session SessionConfig

	// Navigation guard Configuration
	Guard GuardConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds the remote service location
type APIConfig struct {
	Server  string
	Base    string // absolute URL or path appended to Server
	Timeout time.Duration
}

// SessionConfig selects the PersistentKV backend
type SessionConfig struct {
	Backend string // file, keyring, sqlite, memory
	Path    string // file or sqlite location; empty = inside the user config dir
}

// GuardConfig holds navigation policy switches
type GuardConfig struct {
	// RequireLogin redirects anonymous users away from authenticated routes.
	// The admin check is always active regardless of this flag.
	RequireLogin bool
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from the user config file and environment variables.
// Precedence: environment > ~/.config/argscan/config.yaml > defaults.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	user, err := userconfig.Load()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		API: APIConfig{
			Server:  DefaultServer,
			Base:    DefaultAPIBase,
			Timeout: DefaultRequestTimeout,
		},
		Session: SessionConfig{
			Backend: SessionBackendFile,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}

	if user.Server != "" {
		cfg.API.Server = user.Server
	}
	if user.APIBase != "" {
		cfg.API.Base = user.APIBase
	}
	if user.RequireLogin != nil {
		cfg.Guard.RequireLogin = *user.RequireLogin
	}

	if v := os.Getenv("ARGSCAN_SERVER"); v != "" {
		cfg.API.Server = v
	}
	if v := os.Getenv("ARGSCAN_API_BASE_URL"); v != "" {
		cfg.API.Base = v
	}
	if v := os.Getenv("ARGSCAN_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ARGSCAN_REQUEST_TIMEOUT %q", v)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv("ARGSCAN_REQUIRE_LOGIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ARGSCAN_REQUIRE_LOGIN %q: %w", v, err)
		}
		cfg.Guard.RequireLogin = b
	}
	if v := os.Getenv("ARGSCAN_SESSION_STORE"); v != "" {
		cfg.Session.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ARGSCAN_SESSION_PATH"); v != "" {
		cfg.Session.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	switch cfg.Session.Backend {
	case SessionBackendFile, SessionBackendKeyring, SessionBackendSQLite, SessionBackendMemory:
	default:
		return nil, fmt.Errorf("unknown session store %q (want file, keyring, sqlite or memory)", cfg.Session.Backend)
	}

	return cfg, nil
}

// BaseURL joins the server origin and the API base. An absolute API base wins.
func (c APIConfig) BaseURL() (string, error) {
	base := c.Base
	if base == "" {
		base = DefaultAPIBase
	}

	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		return strings.TrimRight(base, "/"), nil
	}

	server := strings.TrimRight(c.Server, "/")
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", c.Server, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: scheme and host are required", c.Server)
	}

	return server + "/" + strings.Trim(base, "/"), nil
}
