package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadFrom_DefaultsWithoutFiles(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "fable-ai-api", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.Equal(t, 10, cfg.RateLimit.Policies.Fable.Tokens)
	assert.Equal(t, 3600, cfg.RateLimit.Policies.Fable.WindowSeconds)
	assert.Equal(t, 20, cfg.RateLimit.Policies.TTS.Tokens)
	assert.Equal(t, "deny", cfg.RateLimit.OnStoreFailure)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Providers["openai"].Model)
	assert.Equal(t, 400, cfg.LLM.Providers["openai"].MaxTokens)
	require.NotNil(t, cfg.LLM.Providers["openai"].Temperature)
	assert.InDelta(t, 0.8, *cfg.LLM.Providers["openai"].Temperature, 1e-9)
	assert.Equal(t, "verse", cfg.Speech.Voices["kid-en"])
	assert.False(t, cfg.RateLimit.Store.Configured())
}

func TestLoadFrom_ExpandsPlaceholdersAndMergesEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
rate_limit:
  store:
    address: ${TEST_STORE_ADDR:localhost:6379}
    token: ${TEST_STORE_TOKEN:}
  policies:
    fable:
      tokens: 3
      window_seconds: 60
`)
	writeConfig(t, dir, "config.staging.yaml", `
rate_limit:
  policies:
    fable:
      tokens: 5
`)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("TEST_STORE_TOKEN", "secret")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RateLimit.Store.Address)
	assert.Equal(t, "secret", cfg.RateLimit.Store.Token)
	assert.True(t, cfg.RateLimit.Store.Configured())
	assert.Equal(t, 5, cfg.RateLimit.Policies.Fable.Tokens)
	assert.Equal(t, 60, cfg.RateLimit.Policies.Fable.WindowSeconds)
}

func TestLoadFrom_ZeroTemperature(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "llm:\n  providers:\n    openai:\n      temperature: 0\n")
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	temp := cfg.LLM.Providers["openai"].Temperature
	require.NotNil(t, temp)
	assert.Zero(t, *temp)
}

func TestLoadFrom_StoreEnvAliases(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("UPSTASH_REDIS_URL", "rediss://default@example.upstash.io:6379")
	t.Setenv("RATE_LIMIT_STORE_TOKEN", "tok")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "rediss://default@example.upstash.io:6379", cfg.RateLimit.Store.Address)
	assert.Equal(t, "tok", cfg.RateLimit.Store.Token)
}

func TestLoadFrom_RejectsUnknownFailurePolicy(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "rate_limit:\n  on_store_failure: allow\n")
	t.Setenv("APP_ENV", "test")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_store_failure")
}

func TestLoadFrom_RejectsZeroWindow(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "rate_limit:\n  policies:\n    tts:\n      window_seconds: 0\n")
	t.Setenv("APP_ENV", "test")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tts")
}

func TestRateLimitStoreConfig_Selection(t *testing.T) {
	tests := []struct {
		name       string
		cfg        RateLimitStoreConfig
		configured bool
		partial    bool
	}{
		{name: "none", cfg: RateLimitStoreConfig{}},
		{name: "both", cfg: RateLimitStoreConfig{Address: "localhost:6379", Token: "t"}, configured: true},
		{name: "address only", cfg: RateLimitStoreConfig{Address: "localhost:6379"}, partial: true},
		{name: "token only", cfg: RateLimitStoreConfig{Token: "t"}, partial: true},
		{name: "blank values", cfg: RateLimitStoreConfig{Address: "  ", Token: "\t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.configured, tt.cfg.Configured())
			assert.Equal(t, tt.partial, tt.cfg.Partial())
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FABLE_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${FABLE_SET}"))
	assert.Equal(t, "a=fallback", expandEnv("a=${FABLE_UNSET_VAR:fallback}"))
	assert.Equal(t, "a=", expandEnv("a=${FABLE_UNSET_VAR:}"))
	assert.Equal(t, "a=${FABLE_UNSET_VAR}", expandEnv("a=${FABLE_UNSET_VAR}"))
}
