package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite://groupkeeper.db", cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.EventTimeout)
	assert.True(t, cfg.SchedEnabled)
	assert.Equal(t, time.Minute, cfg.SchedInterval)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://gk:gk@localhost/gk?sslmode=disable
log:
  level: debug
  format: json
engine:
  event_timeout: 30s
sched:
  enabled: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://gk:gk@localhost/gk?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.EventTimeout)
	assert.False(t, cfg.SchedEnabled)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n")
	t.Setenv("GK_LOG_LEVEL", "error")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadConfig_RejectsTokenInFile(t *testing.T) {
	path := writeConfig(t, "bot_token: 12345:secret\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GK_BOT_TOKEN")
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "log:\n  level: verbose\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"zero timeout", "engine:\n  event_timeout: 0s\n"},
		{"negative sched interval", "sched:\n  interval: -5s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBotToken(t *testing.T) {
	t.Setenv("GK_BOT_TOKEN", "  12345:abcdef  ")
	token, err := BotToken()
	require.NoError(t, err)
	assert.Equal(t, "12345:abcdef", token)

	t.Setenv("GK_BOT_TOKEN", "")
	_, err = BotToken()
	assert.Error(t, err)
}
