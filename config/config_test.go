package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 4000, cfg.LLM.MaxInputChars)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, float64(2), cfg.Retry.Multiplier)
	assert.Equal(t, 14*time.Minute, cfg.KeepAlive.Interval)
	assert.False(t, cfg.KeepAlive.Enabled)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
server:
  port: 9090
llm:
  model: gpt-4o
retry:
  max_attempts: 5
  initial_delay: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:secret")

	cfg, err := Load(strings.NewReader(`
telegram:
  token: ${TEST_BOT_TOKEN}
logging:
  level: ${TEST_LOG_LEVEL:-debug}
`))
	require.NoError(t, err)

	assert.Equal(t, "123:secret", cfg.Telegram.Token)
	assert.Equal(t, "debug", cfg.Logging.Level, "default-value syntax applies when unset")
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("GPTS_MODEL_ID", "env-model")
	t.Setenv("PORT", "7070")

	cfg, err := Load(strings.NewReader(`
server:
  port: 9090
telegram:
  token: yaml-token
llm:
  api_key: yaml-key
  model: yaml-model
`))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid port"},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "read timeout"},
		{"empty api url", func(c *Config) { c.Telegram.APIURL = "" }, "telegram api url"},
		{"empty provider", func(c *Config) { c.LLM.Provider = "" }, "provider"},
		{"empty model", func(c *Config) { c.LLM.Model = "" }, "model"},
		{"zero max input chars", func(c *Config) { c.LLM.MaxInputChars = 0 }, "max input chars"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"multiplier below one", func(c *Config) { c.Retry.Multiplier = 0.5 }, "multiplier"},
		{"max delay below initial", func(c *Config) { c.Retry.MaxDelay = 500 * time.Millisecond }, "max delay"},
		{"zero attempt timeout", func(c *Config) { c.Retry.AttemptTimeout = 0 }, "attempt timeout"},
		{"keep-alive without url", func(c *Config) { c.KeepAlive.Enabled = true }, "no URL"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestKeepAliveURLFallsBackToPublicURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.PublicURL = "https://bridge.example.com"
	assert.Equal(t, "https://bridge.example.com", cfg.KeepAliveURL())

	cfg.KeepAlive.URL = "https://bridge.example.com/health"
	assert.Equal(t, "https://bridge.example.com/health", cfg.KeepAliveURL())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config file")
}

func TestFileWatcherReloadsValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gptbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	fw, err := NewFileWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer fw.Close()

	assert.Equal(t, 9090, fw.GetCurrentConfig().Server.Port)

	updates := fw.Subscribe()
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9091\n"), 0o644))

	select {
	case cfg := <-updates:
		assert.Equal(t, 9091, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("no config update received")
	}
	assert.Equal(t, 9091, fw.GetCurrentConfig().Server.Port)
}

func TestFileWatcherKeepsConfigOnInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gptbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	fw, err := NewFileWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: bogus\n"), 0o644))

	// The invalid file is rejected; the last good config stays current.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 9090, fw.GetCurrentConfig().Server.Port)
	assert.Equal(t, "info", fw.GetCurrentConfig().Logging.Level)
}
