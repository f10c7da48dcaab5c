package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.AsyncTimeout)
	assert.Equal(t, 1000, cfg.Sandbox.MaxOutputRecords)
	assert.Equal(t, 8, cfg.Sandbox.MaxConcurrent)

	assert.Equal(t, "file", cfg.Progress.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_RPS":           "500",
		"RATE_LIMIT_BURST":         "1000",
		"RATE_LIMIT_ENABLED":       "false",
		"SANDBOX_TIMEOUT":          "250ms",
		"SANDBOX_ASYNC_TIMEOUT":    "0s",
		"SANDBOX_MAX_CONCURRENT":   "2",
		"PLAYGROUND_MAX_INSTANCES": "10",
		"CATALOG_DIR":              "/srv/catalog",
		"PROGRESS_BACKEND":         "redis",
		"PROGRESS_REDIS_ADDR":      "redis:6379",
		"TUTOR_API_KEY":            "secret",
		"TUTOR_MODEL":              "gemini-test",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Sandbox.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Sandbox.AsyncTimeout)
	assert.Equal(t, 2, cfg.Sandbox.MaxConcurrent)
	assert.Equal(t, 10, cfg.Playground.MaxInstances)
	assert.Equal(t, "/srv/catalog", cfg.Catalog.Dir)
	assert.Equal(t, "redis", cfg.Progress.Backend)
	assert.Equal(t, "redis:6379", cfg.Progress.RedisAddr)
	assert.Equal(t, "secret", cfg.Tutor.APIKey)
	assert.Equal(t, "gemini-test", cfg.Tutor.Model)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero timeout", key: "SANDBOX_TIMEOUT", value: "0s"},
		{name: "negative async timeout", key: "SANDBOX_ASYNC_TIMEOUT", value: "-1s"},
		{name: "no execution slots", key: "SANDBOX_MAX_CONCURRENT", value: "0"},
		{name: "unknown progress backend", key: "PROGRESS_BACKEND", value: "mongo"},
		{name: "unparsable duration", key: "SANDBOX_TIMEOUT", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}
