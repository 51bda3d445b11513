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
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
	assert.Equal(t, int64(5_000_000), cfg.MaxUploadSize)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "*/1 * * * *", cfg.JanitorCron)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadYAMLOverlayAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9000"
media:
  max_upload_size: 2MiB
typing:
  timeout: 5s
cors:
  allowed_origins: ["https://app.example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TYPING_TIMEOUT", "1500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, int64(2*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.TypingTimeout)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
}

func TestValidateRejectsBadCron(t *testing.T) {
	cfg := Config{JWTSecret: "s", TypingTimeout: time.Second, MaxUploadSize: 1, JanitorCron: "not a cron"}
	require.Error(t, cfg.Validate())

	cfg.JanitorCron = "*/5 * * * *"
	require.NoError(t, cfg.Validate())
}

func TestValidateImageHostNeedsKey(t *testing.T) {
	cfg := Config{JWTSecret: "s", TypingTimeout: time.Second, MaxUploadSize: 1, JanitorCron: "* * * * *", ImageHostURL: "https://api.imgbb.com/1/upload"}
	require.Error(t, cfg.Validate())
}

func TestTrustedProxies(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)

	cfg.TrustedProxies = []string{"not-an-ip"}
	require.Error(t, cfg.Validate())
}
