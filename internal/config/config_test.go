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
	chdir(t, t.TempDir())
	t.Setenv("SECUREWATCH_API_URL", "")
	t.Setenv("SECUREWATCH_TOKEN_STORE", "")
	t.Setenv("SECUREWATCH_CONFIG", "")
	t.Setenv("JWT_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.API.URL)
	assert.Equal(t, "keyring", cfg.TokenStore.Backend)
	assert.Equal(t, "securewatch:token", cfg.TokenStore.Redis.Key)
	assert.Equal(t, 24*time.Hour, cfg.AuthStub.TokenTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AuthStub.AllowedOrigins)
	assert.Empty(t, cfg.Revalidate.Schedule)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SECUREWATCH_CONFIG", "")
	t.Setenv("SECUREWATCH_API_URL", "https://api.example.test")
	t.Setenv("SECUREWATCH_TOKEN_STORE", "file")
	t.Setenv("AUTHSTUB_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("JWT_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", cfg.API.URL)
	assert.Equal(t, "file", cfg.TokenStore.Backend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AuthStub.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.AuthStub.TokenTTL)
}

func TestLoad_InvalidTTL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SECUREWATCH_CONFIG", "")
	t.Setenv("JWT_TTL", "-1h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JWT_TTL")
}

func TestLoad_YAMLFileOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("SECUREWATCH_API_URL", "http://from-env.test")
	t.Setenv("JWT_TTL", "")

	path := filepath.Join(dir, "securewatch.yaml")
	content := `
api:
  url: http://from-file.test
token_store:
  backend: redis
  redis:
    address: redis.internal:6379
revalidate:
  schedule: "*/5 * * * *"
authstub:
  token_ttl: 2h
  allowed_origins: ["https://dash.test"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SECUREWATCH_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-file.test", cfg.API.URL)
	assert.Equal(t, "redis", cfg.TokenStore.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.TokenStore.Redis.Address)
	assert.Equal(t, "securewatch:token", cfg.TokenStore.Redis.Key, "unset file fields keep env values")
	assert.Equal(t, "*/5 * * * *", cfg.Revalidate.Schedule)
	assert.Equal(t, 2*time.Hour, cfg.AuthStub.TokenTTL)
	assert.Equal(t, []string{"https://dash.test"}, cfg.AuthStub.AllowedOrigins)
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_TTL", "")
	t.Setenv("SECUREWATCH_CONFIG", "/nonexistent/securewatch.yaml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
