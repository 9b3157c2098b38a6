package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:7860", cfg.Server.Addr)
	assert.Equal(t, "data/links.json", cfg.Data.File)
	assert.Equal(t, "admin", cfg.Review.AdminUser)
	assert.Equal(t, 3, cfg.Review.SaveThreshold)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Review.SessionTimeout))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 300, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 50, cfg.RateLimit.Burst)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: 0.0.0.0:9000
data:
  file: /srv/review/links.json
review:
  admin_user: naftali
  save_threshold: 10
  session_timeout: 90s
log:
  level: debug
rate_limit:
  requests_per_minute: 60
  burst: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/srv/review/links.json", cfg.Data.File)
	assert.Equal(t, "naftali", cfg.Review.AdminUser)
	assert.Equal(t, 10, cfg.Review.SaveThreshold)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Review.SessionTimeout))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: :8080\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/links.json", cfg.Data.File)
	assert.Equal(t, 3, cfg.Review.SaveThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LINKREVIEW_ADDR", "127.0.0.1:7777")
	t.Setenv("LINKREVIEW_DATA_FILE", "/tmp/links.json")
	t.Setenv("LINKREVIEW_ADMIN_USER", "reb")
	t.Setenv("LINKREVIEW_SAVE_THRESHOLD", "7")
	t.Setenv("LINKREVIEW_SESSION_TIMEOUT", "10m")
	t.Setenv("LINKREVIEW_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Addr)
	assert.Equal(t, "/tmp/links.json", cfg.Data.File)
	assert.Equal(t, "reb", cfg.Review.AdminUser)
	assert.Equal(t, 7, cfg.Review.SaveThreshold)
	assert.Equal(t, 10*time.Minute, time.Duration(cfg.Review.SessionTimeout))
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: :8080\n"), 0o644))
	t.Setenv("LINKREVIEW_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [broken\n"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("review:\n  session_timeout: soon\n"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("bad threshold env", func(t *testing.T) {
		t.Setenv("LINKREVIEW_SAVE_THRESHOLD", "many")
		_, err := Load("")
		require.Error(t, err)
	})
}
