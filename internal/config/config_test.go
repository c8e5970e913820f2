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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "security_logs", cfg.Security.LogDir)
	assert.Equal(t, 1000, cfg.Security.CacheCapacity)
	assert.Equal(t, 720*time.Hour, cfg.Security.RotationMaxAge)
	assert.True(t, cfg.Security.AuditLogs)
	assert.Contains(t, cfg.Security.SensitiveURLPatterns, `^/graphql/.*$`)
	assert.Contains(t, cfg.Security.HighRiskOperations, "createToken")
	assert.Contains(t, cfg.Security.HighRiskOperations, "deleteOrder")

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 60, cfg.RateLimit.GlobalLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.GlobalWindow)
	assert.Equal(t, 30, cfg.RateLimit.SensitiveLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.SensitiveWindow)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_DefaultPermissionRules(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Len(t, cfg.Security.PermissionRules, 3)
	assert.Equal(t, "/api/orders/", cfg.Security.PermissionRules[0].PathPrefix)
	assert.Equal(t, "manage_orders", cfg.Security.PermissionRules[0].Permission)
	assert.ElementsMatch(t, []string{"PUT", "DELETE"}, cfg.Security.PermissionRules[0].Methods)
	assert.Equal(t, "manage_products", cfg.Security.PermissionRules[1].Permission)
	assert.Equal(t, "access_dashboard", cfg.Security.PermissionRules[2].Permission)
	assert.Empty(t, cfg.Security.PermissionRules[2].Methods, "dashboard rule covers all methods")
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
auth:
  api_key: file-key
security:
  log_dir: /var/log/secmon
  cache_capacity: 50
rate_limit:
  enabled: false
  backend: redis
logging:
  level: debug
  format: text
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.Auth.APIKey)
	assert.Equal(t, "/var/log/secmon", cfg.Security.LogDir)
	assert.Equal(t, 50, cfg.Security.CacheCapacity)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Values the file omits keep their defaults.
	assert.Equal(t, 60, cfg.RateLimit.GlobalLimit)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
