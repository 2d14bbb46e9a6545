package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8888", cfg.ServerURL)
	assert.Equal(t, "python3", cfg.DefaultKernel)
	assert.Equal(t, "nbkit", cfg.Username)
}

func TestLoadProjectJSONCWithComments(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	content := `{
		// project overrides
		"server": "http://nb.example.com:8888",
		"defaultKernel": "julia-1.10",
		"appendOnNavigate": true,
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nbkit.jsonc"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://nb.example.com:8888", cfg.ServerURL)
	assert.Equal(t, "julia-1.10", cfg.DefaultKernel)
	assert.True(t, cfg.AppendOnNavigate)
}

func TestEnvInterpolation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TEST_NB_TOKEN", "s3cret")
	dir := t.TempDir()
	content := `{"token": "{env:TEST_NB_TOKEN}"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nbkit.json"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Token)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	content := `{"server": "http://from-file:8888", "token": "file-token"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nbkit.json"), []byte(content), 0644))

	t.Setenv("NBKIT_SERVER", "http://from-env:9999")
	t.Setenv("NBKIT_TOKEN", "env-token")
	t.Setenv("NBKIT_KERNEL", "xpython")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9999", cfg.ServerURL)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "xpython", cfg.DefaultKernel)
}

func TestJupyterTokenFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("JUPYTER_TOKEN", "jt")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "jt", cfg.Token)
}

func TestWSBase(t *testing.T) {
	cfg := &Config{ServerURL: "http://localhost:8888"}
	assert.Equal(t, "ws://localhost:8888", cfg.WSBase())

	cfg.ServerURL = "https://hub.example.com"
	assert.Equal(t, "wss://hub.example.com", cfg.WSBase())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "nbkit.json")
	cfg := &Config{ServerURL: "http://x:1", Token: "t", DefaultKernel: "k"}
	require.NoError(t, Save(cfg, path))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NBKIT_CONFIG", path)
	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://x:1", loaded.ServerURL)
	assert.Equal(t, "t", loaded.Token)
	assert.Equal(t, "k", loaded.DefaultKernel)
}
