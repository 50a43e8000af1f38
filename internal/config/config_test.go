package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HELPDESK_CONFIG_PATH", "HELPDESK_DATA_DIR", "HELPDESK_LOG_DIR", "LOG_LEVEL", "LOG_OUTPUT",
		"AUTH_PASSWORD_SCHEME", "AUTH_BCRYPT_COST", "AUTH_SESSION_SECRET", "AUTH_SESSION_TTL_MINUTES",
		"APP_NAME", "APP_VERSION",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, "logs", cfg.Storage.LogDir)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "sha256", cfg.Auth.PasswordScheme)
	assert.Zero(t, cfg.Auth.SessionTTLMinutes, "sessions do not expire unless configured")
	assert.Equal(t, filepath.Join("data", "users.jsonl"), cfg.Storage.UsersPath())
	assert.Equal(t, filepath.Join("data", "tickets.jsonl"), cfg.Storage.TicketsPath())
	assert.Equal(t, filepath.Join("logs", "audit.log"), cfg.Storage.AuditPath())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "helpdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  data_dir: /srv/helpdesk/data
  log_dir: /srv/helpdesk/logs
logger:
  level: debug
auth:
  password_scheme: bcrypt
  bcrypt_cost: 10
`), 0o600))

	t.Setenv("HELPDESK_CONFIG_PATH", path)
	t.Setenv("HELPDESK_LOG_DIR", "/var/log/helpdesk")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/helpdesk/data", cfg.Storage.DataDir)
	assert.Equal(t, "/var/log/helpdesk", cfg.Storage.LogDir)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "bcrypt", cfg.Auth.PasswordScheme)
	assert.Equal(t, 10, cfg.Auth.BcryptCost, "invalid env values fall back")
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unterminated"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}
