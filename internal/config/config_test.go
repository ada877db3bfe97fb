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
	t.Setenv("TASKDESK_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Production())
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskdesk.yaml")
	body := `
environment: production
server:
  addr: ":9000"
  cors_origins: ["https://app.example.com"]
auth:
  jwt_secret: "file-secret-0123456789"
  token_ttl: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("TASKDESK_CONFIG", path)
	t.Setenv("TASKDESK_HTTP_ADDR", ":9100")
	t.Setenv("TASKDESK_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.Server.TrustedProxies)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Audit.WriteTimeout)
}

func TestLoadRejectsShortProductionSecret(t *testing.T) {
	t.Setenv("TASKDESK_CONFIG", "")
	t.Setenv("TASKDESK_ENV", "production")
	t.Setenv("TASKDESK_JWT_SECRET", "short")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadReportsBadValues(t *testing.T) {
	t.Setenv("TASKDESK_CONFIG", "")
	t.Setenv("TASKDESK_TOKEN_TTL", "forever")
	t.Setenv("TASKDESK_AUTH_RATE_LIMIT", "many")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TASKDESK_TOKEN_TTL")
	assert.Contains(t, err.Error(), "TASKDESK_AUTH_RATE_LIMIT")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
