package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env.Name)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "http://localhost:9000/callback", cfg.Auth.CallbackURL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "open", cfg.Goodwill.Mode)
	assert.Equal(t, 256, cfg.QR.Size)
	assert.Equal(t, "M", cfg.QR.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
env:
  name: production
  debug: false
http:
  addr: ":8080"
auth:
  callbackurl: https://auth.example.com/callback
  sessionttl: 12h
goodwill:
  mode: ledger
  minimum: "1.5"
qr:
  size: 512
  level: H
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "https://auth.example.com/callback", cfg.Auth.CallbackURL)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "ledger", cfg.Goodwill.Mode)
	assert.Equal(t, "1.5", cfg.Goodwill.Minimum)
	assert.Equal(t, 512, cfg.QR.Size)
	assert.Equal(t, "H", cfg.QR.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
http:
  addr: ":8080"
redis:
  url: redis://file:6379/0
`)

	t.Setenv("ETHID_REDIS_URL", "redis://env:6379/1")
	t.Setenv("ETHID_AUTH_CALLBACKURL", "https://env.example.com/callback")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "redis://env:6379/1", cfg.Redis.URL)
	assert.Equal(t, "https://env.example.com/callback", cfg.Auth.CallbackURL)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "http: [not: valid")

	_, err := Load(path)
	assert.Error(t, err)
}
