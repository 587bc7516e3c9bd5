package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "database", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Polling.Ceiling)
	assert.Equal(t, 40, cfg.Polling.MaxRecoveryAttempts)
	assert.Equal(t, uint(3), cfg.Polling.RetryMaxTries)
	assert.Equal(t, "media_ready", cfg.Realtime.Postgres.Channel)
	assert.True(t, cfg.Gallery.Enabled)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "mediagen.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
polling:
  interval: 2s
providers:
  luma:
    base_url: https://api.lumalabs.ai
    api_key: from-file
    models:
      video: [ray-2]
recovery:
  templates:
    - name: cdn
      template: https://cdn.example.com/{task_id}.{ext}
      media_types: [video]
`), 0o600))

	t.Setenv("MEDIAGEN_LUMA_API_KEY", "from-env")
	t.Setenv("MEDIAGEN_JWT_SECRET", "secret")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Polling.Interval)
	require.Contains(t, cfg.Providers, "luma")
	assert.Equal(t, "from-env", cfg.Providers["luma"].APIKey)
	assert.Equal(t, []string{"ray-2"}, cfg.Providers["luma"].Models["video"])
	require.Len(t, cfg.Recovery.Templates, 1)
	assert.Equal(t, []string{"video"}, cfg.Recovery.Templates[0].MediaTypes)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Database: "m", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u dbname=m sslmode=disable", cfg.DSN())

	cfg.Password = "p"
	assert.Contains(t, cfg.DSN(), "password=p")
}
