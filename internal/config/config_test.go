package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/argscan/argscan/internal/cli/userconfig"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(userconfig.DirEnv, dir)
	for _, k := range []string{
		"ARGSCAN_SERVER", "ARGSCAN_API_BASE_URL", "ARGSCAN_REQUEST_TIMEOUT",
		"ARGSCAN_REQUIRE_LOGIN", "ARGSCAN_SESSION_STORE", "ARGSCAN_SESSION_PATH",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultServer, cfg.API.Server)
	require.Equal(t, DefaultAPIBase, cfg.API.Base)
	require.Equal(t, DefaultRequestTimeout, cfg.API.Timeout)
	require.Equal(t, SessionBackendFile, cfg.Session.Backend)
	require.False(t, cfg.Guard.RequireLogin)

	base, err := cfg.API.BaseURL()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api", base)
}

func TestLoad_EnvOverridesUserConfig(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("server: https://from-file.example\nrequire_login: true\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://from-file.example", cfg.API.Server)
	require.True(t, cfg.Guard.RequireLogin)

	t.Setenv("ARGSCAN_SERVER", "https://from-env.example")
	t.Setenv("ARGSCAN_REQUIRE_LOGIN", "false")
	t.Setenv("ARGSCAN_REQUEST_TIMEOUT", "90s")
	t.Setenv("ARGSCAN_SESSION_STORE", "SQLite")

	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "https://from-env.example", cfg.API.Server)
	require.False(t, cfg.Guard.RequireLogin)
	require.Equal(t, 90*time.Second, cfg.API.Timeout)
	require.Equal(t, SessionBackendSQLite, cfg.Session.Backend)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)

	t.Setenv("ARGSCAN_REQUIRE_LOGIN", "maybe")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("ARGSCAN_REQUIRE_LOGIN", "")
	t.Setenv("ARGSCAN_SESSION_STORE", "redis")
	_, err = Load()
	require.ErrorContains(t, err, "unknown session store")
}

func TestAPIConfig_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     APIConfig
		want    string
		wantErr bool
	}{
		{"relative base", APIConfig{Server: "https://arg.example/", Base: "/api"}, "https://arg.example/api", false},
		{"empty base", APIConfig{Server: "http://127.0.0.1:9000"}, "http://127.0.0.1:9000/api", false},
		{"absolute base", APIConfig{Server: "http://ignored", Base: "https://gw.example/v1/api/"}, "https://gw.example/v1/api", false},
		{"server without scheme", APIConfig{Server: "arg.example", Base: "/api"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.BaseURL()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadMockAPI(t *testing.T) {
	t.Setenv("MOCKAPI_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("MOCKAPI_EXPIRY_SIGNAL", "status")
	t.Setenv("MOCKAPI_TOKEN_TTL", "15m")
	t.Setenv("MOCKAPI_EXPOSE_CODES", "true")

	cfg, err := LoadMockAPI()
	require.NoError(t, err)
	require.EqualValues(t, 1024, cfg.MaxUploadBytes)
	require.Equal(t, ExpiryStatus, cfg.ExpirySignal)
	require.Equal(t, 15*time.Minute, cfg.TokenTTL)
	require.True(t, cfg.ExposeCodes)

	t.Setenv("MOCKAPI_TOKEN_TTL", "soon")
	_, err = LoadMockAPI()
	require.Error(t, err)
	t.Setenv("MOCKAPI_TOKEN_TTL", "")

	t.Setenv("MOCKAPI_EXPIRY_SIGNAL", "carrier-pigeon")
	_, err = LoadMockAPI()
	require.Error(t, err)
}
