package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsEmpty(t *testing.T) {
	t.Setenv(DirEnv, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.Server)
	require.Nil(t, cfg.RequireLogin)
}

func TestSetServer_PersistsYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)

	require.NoError(t, SetServer("https://arg.example.org"))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "server: https://arg.example.org")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://arg.example.org", cfg.Server)
}

func TestLoad_RequireLogin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("require_login: true\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.RequireLogin)
	require.True(t, *cfg.RequireLogin)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse user config file")
}

func TestRememberServer_DedupesAndBounds(t *testing.T) {
	cfg := &UserConfig{}
	for _, s := range []string{"a", "b", "c", "a", "d", "e", "f"} {
		cfg.RememberServer(s)
	}
	require.Equal(t, []string{"f", "e", "d", "a", "c"}, cfg.RecentServers)

	cfg.RememberServer("")
	require.Len(t, cfg.RecentServers, 5)
}
