package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets variables that LoadFromFiles reads so the host environment
// cannot leak into assertions
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"API_URL", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"GAMEMASTER_LLM_PROVIDER", "GAMEMASTER_LOG_LEVEL", "GAMEMASTER_MARKET_TIMEOUT",
		"GAMEMASTER_MARKET_BASE_URL", "GAMEMASTER_OPENAI_API_KEY", "GAMEMASTER_SCENARIO_PUBLISH",
	} {
		t.Setenv(name, "")
	}
	// .env discovery is relative to the working directory
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gamemaster.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, LLMProviderOpenAI, cfg.LLM.DefaultProvider)
	assert.Equal(t, "gpt-5.1", cfg.OpenAI.Model)
	assert.Equal(t, "/stocks", cfg.Market.StocksPath)
	assert.Equal(t, DefaultIntent, cfg.Scenario.Intent)
	assert.Equal(t, 0, cfg.LLM.MaxRetries)
	assert.True(t, cfg.Scenario.Validate)
	assert.False(t, cfg.Scenario.Publish)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	clearEnv(t)

	base := writeConfig(t, `
[market]
base_url = "http://market:3000"
timeout = "10s"

[llm]
default_provider = "claude"
`)
	override := writeConfig(t, `
[market]
timeout = "5s"

[scenario]
count = 2
`)

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "http://market:3000", cfg.Market.BaseURL)
	assert.Equal(t, "5s", cfg.Market.Timeout)
	assert.Equal(t, LLMProviderClaude, cfg.LLM.DefaultProvider)
	assert.Equal(t, 2, cfg.Scenario.Count)
	assert.Equal(t, "gpt-5.1", cfg.OpenAI.Model, "untouched defaults survive")
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "http://backend:4000")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GAMEMASTER_LLM_PROVIDER", "GEMINI")
	t.Setenv("GAMEMASTER_LOG_LEVEL", "debug")

	path := writeConfig(t, `
[market]
base_url = "http://from-file"
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:4000", cfg.Market.BaseURL)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, LLMProviderGemini, cfg.LLM.DefaultProvider)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "[market\nbase_url ="))
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Scenario.Publish = true

	ApplyFlagOverrides(cfg, 0, "", false)
	assert.Equal(t, 1, cfg.Scenario.Count)
	assert.Equal(t, DefaultIntent, cfg.Scenario.Intent)
	assert.True(t, cfg.Scenario.Validate)

	ApplyFlagOverrides(cfg, 3, "Generate a negative energy scenario", true)
	assert.Equal(t, 3, cfg.Scenario.Count)
	assert.Equal(t, "Generate a negative energy scenario", cfg.Scenario.Intent)
	assert.False(t, cfg.Scenario.Validate)
	assert.False(t, cfg.Scenario.Publish)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.DefaultProvider = "llama" }},
		{"bad market timeout", func(c *Config) { c.Market.Timeout = "soon" }},
		{"bad rate limit", func(c *Config) { c.LLM.RateLimit = "" }},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }},
		{"zero count", func(c *Config) { c.Scenario.Count = 0 }},
		{"zero attempts", func(c *Config) { c.Scenario.MaxAttempts = 0 }},
		{"blank intent", func(c *Config) { c.Scenario.Intent = "  " }},
		{"publish without validate", func(c *Config) { c.Scenario.Publish = true; c.Scenario.Validate = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	cfg := NewDefaultConfig()

	_, err := ResolveAPIKey(cfg, LLMProviderOpenAI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.Claude.APIKey = "sk-ant"
	key, err := ResolveAPIKey(cfg, LLMProviderClaude)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", key)

	_, err = ResolveAPIKey(cfg, "other")
	assert.Error(t, err)
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, 30*time.Second, DurationOr("30s", 0))
	assert.Equal(t, 5*time.Second, DurationOr("", 5*time.Second))
	assert.Equal(t, 5*time.Second, DurationOr("later", 5*time.Second))
}
