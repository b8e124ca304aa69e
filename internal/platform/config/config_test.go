package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
  timezone: Europe/Berlin
database:
  driver: memory
provider: twilio
twilio:
  account_sid: AC0123456789abcdef0123456789abcdef
  auth_token: secret-token
  default_behavior: failure
  registered_numbers: ["+15551234567"]
  allowed_from_numbers: ["+15550000000"]
  failure_numbers: ["+15559999999"]
  callbacks:
    delay_seconds: 1
    retry_attempts: 4
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "Europe/Berlin", cfg.Server.Location().String())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "failure", cfg.Twilio.DefaultBehavior)
	assert.Equal(t, []string{"+15551234567"}, cfg.Twilio.RegisteredNumbers)
	assert.Equal(t, []string{"+15559999999"}, cfg.Twilio.FailureNumbers)
	assert.True(t, cfg.Twilio.Validation.RequireAuth)
	assert.True(t, cfg.Twilio.Callbacks.Enabled)
	assert.Equal(t, time.Second, cfg.Twilio.Callbacks.Delay())
	assert.Equal(t, 4, cfg.Twilio.Callbacks.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Twilio.Callbacks.RetryDelay())
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_TWILIO_CALLBACKS_ENABLED", "false")
	t.Setenv("APP_SERVER_PORT", "7070")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.False(t, cfg.Twilio.Callbacks.Enabled)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, sampleConfig))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unsupported provider",
			content: "provider: vonage\ntwilio:\n  validation:\n    require_auth: false\n",
		},
		{
			name:    "bad default behavior",
			content: "twilio:\n  default_behavior: maybe\n  validation:\n    require_auth: false\n",
		},
		{
			name:    "placeholder account sid",
			content: "twilio:\n  account_sid: ACXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX\n  auth_token: real\n",
		},
		{
			name:    "missing auth token",
			content: "twilio:\n  account_sid: AC1\n",
		},
		{
			name:    "zero retry attempts",
			content: "twilio:\n  validation:\n    require_auth: false\n  callbacks:\n    retry_attempts: 0\n",
		},
		{
			name:    "postgres without dsn",
			content: "database:\n  driver: postgres\ntwilio:\n  validation:\n    require_auth: false\n",
		},
		{
			name:    "unknown timezone",
			content: "server:\n  timezone: Mars/Olympus\ntwilio:\n  validation:\n    require_auth: false\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_AuthNotRequired(t *testing.T) {
	cfg, err := Load(writeConfig(t, "twilio:\n  validation:\n    require_auth: false\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Twilio.AccountSID)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}
