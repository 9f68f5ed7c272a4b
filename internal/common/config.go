package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// ErrMissingAPIKey is returned when the selected completion provider has no credential
var ErrMissingAPIKey = errors.New("completion service API key is required")

// DefaultIntent is the operator message sent with each snapshot
const DefaultIntent = "Generate a market scenario based on this data"

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Market      MarketConfig   `toml:"market"`
	LLM         LLMConfig      `toml:"llm"`
	OpenAI      OpenAIConfig   `toml:"openai"`
	Claude      ClaudeConfig   `toml:"claude"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Scenario    ScenarioConfig `toml:"scenario"`
	Logging     LoggingConfig  `toml:"logging"`
}

// MarketConfig points at the internal market-data service
type MarketConfig struct {
	BaseURL    string `toml:"base_url"`    // Service base address (API_URL)
	StocksPath string `toml:"stocks_path"` // Path appended to BaseURL (default: "/stocks")
	Timeout    string `toml:"timeout"`     // Request timeout as duration string (default: "30s")
}

// LLMProvider represents the completion provider type
type LLMProvider string

const (
	// LLMProviderOpenAI uses the OpenAI chat completions API
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig contains settings shared by all providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "openai", "claude" or "gemini" (default: "openai")
	MaxRetries      int         `toml:"max_retries"`      // Rate-limit retries per completion call (default: 0, failures propagate)
	RateLimit       string      `toml:"rate_limit"`       // Minimum spacing between completion calls (default: "1s")
}

// OpenAIConfig contains OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`     // OPENAI_API_KEY
	Model       string  `toml:"model"`       // default: "gpt-5.1"
	BaseURL     string  `toml:"base_url"`    // Optional OpenAI-compatible endpoint
	Temperature float32 `toml:"temperature"` // 0 leaves the model default
	MaxTokens   int     `toml:"max_tokens"`  // 0 leaves the model default
	Timeout     string  `toml:"timeout"`     // default: "2m"
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // ANTHROPIC_API_KEY
	Model       string  `toml:"model"`       // default: "claude-sonnet-4-20250514"
	MaxTokens   int     `toml:"max_tokens"`  // default: 1024
	Temperature float32 `toml:"temperature"` // default: 0.7
	Timeout     string  `toml:"timeout"`     // default: "2m"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey           string  `toml:"api_key"`           // GEMINI_API_KEY or GOOGLE_API_KEY
	Model            string  `toml:"model"`             // default: "gemini-2.5-flash"
	Temperature      float32 `toml:"temperature"`       // default: 0.7
	Timeout          string  `toml:"timeout"`           // default: "2m"
	StructuredOutput bool    `toml:"structured_output"` // Send the scenario JSON schema as response schema (default: true)
}

// ScenarioConfig controls how replies are requested and checked
type ScenarioConfig struct {
	Intent      string `toml:"intent"`       // Operator message sent with the snapshot
	Count       int    `toml:"count"`        // Scenarios generated in one conversation (default: 1)
	Validate    bool   `toml:"validate"`     // Parse and validate replies (default: true)
	MaxAttempts int    `toml:"max_attempts"` // Attempts per scenario when validating (default: 3)
	Publish     bool   `toml:"publish"`      // POST validated scenarios to the simulator (default: false)
	PublishPath string `toml:"publish_path"` // default: "/internal/events/create"
}

// LoggingConfig controls arbor writers
type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default: "15:04:05"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Market: MarketConfig{
			StocksPath: "/stocks",
			Timeout:    "30s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderOpenAI,
			MaxRetries:      0,
			RateLimit:       "1s",
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-5.1",
			Timeout: "2m",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     "2m",
		},
		Gemini: GeminiConfig{
			Model:            "gemini-2.5-flash",
			Temperature:      0.7,
			Timeout:          "2m",
			StructuredOutput: true,
		},
		Scenario: ScenarioConfig{
			Intent:      DefaultIntent,
			Count:       1,
			Validate:    true,
			MaxAttempts: 3,
			Publish:     false,
			PublishPath: "/internal/events/create",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files. A missing .env file is not an error.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// godotenv never overrides variables already set in the process
	_ = godotenv.Load()

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GAMEMASTER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Market configuration (API_URL is the name the market service deploys with)
	if baseURL := os.Getenv("API_URL"); baseURL != "" {
		config.Market.BaseURL = baseURL
	}
	if baseURL := os.Getenv("GAMEMASTER_MARKET_BASE_URL"); baseURL != "" {
		config.Market.BaseURL = baseURL
	}
	if timeout := os.Getenv("GAMEMASTER_MARKET_TIMEOUT"); timeout != "" {
		config.Market.Timeout = timeout
	}

	// LLM configuration
	if provider := os.Getenv("GAMEMASTER_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if maxRetries := os.Getenv("GAMEMASTER_LLM_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.LLM.MaxRetries = mr
		}
	}
	if rateLimit := os.Getenv("GAMEMASTER_LLM_RATE_LIMIT"); rateLimit != "" {
		config.LLM.RateLimit = rateLimit
	}

	// OpenAI configuration
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GAMEMASTER_OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey // GAMEMASTER_ prefix takes priority
	}
	if model := os.Getenv("GAMEMASTER_OPENAI_MODEL"); model != "" {
		config.OpenAI.Model = model
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}
	if temperature := os.Getenv("GAMEMASTER_OPENAI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.OpenAI.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GAMEMASTER_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("GAMEMASTER_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("GAMEMASTER_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("GAMEMASTER_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GAMEMASTER_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Scenario configuration
	if validate := os.Getenv("GAMEMASTER_SCENARIO_VALIDATE"); validate != "" {
		if v, err := strconv.ParseBool(validate); err == nil {
			config.Scenario.Validate = v
		}
	}
	if maxAttempts := os.Getenv("GAMEMASTER_SCENARIO_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Scenario.MaxAttempts = ma
		}
	}
	if publish := os.Getenv("GAMEMASTER_SCENARIO_PUBLISH"); publish != "" {
		if p, err := strconv.ParseBool(publish); err == nil {
			config.Scenario.Publish = p
		}
	}

	// Logging configuration
	if level := os.Getenv("GAMEMASTER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("GAMEMASTER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Zero values leave the configured setting untouched.
func ApplyFlagOverrides(config *Config, count int, intent string, raw bool) {
	if count > 0 {
		config.Scenario.Count = count
	}
	if intent != "" {
		config.Scenario.Intent = intent
	}
	if raw {
		config.Scenario.Validate = false
		config.Scenario.Publish = false
	}
}

// Validate checks values that would otherwise fail late, after the market
// fetch. The market base URL is deliberately not checked here.
func (c *Config) Validate() error {
	switch c.LLM.DefaultProvider {
	case LLMProviderOpenAI, LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm.default_provider '%s': must be 'openai', 'claude' or 'gemini'", c.LLM.DefaultProvider)
	}

	durations := map[string]string{
		"market.timeout": c.Market.Timeout,
		"llm.rate_limit": c.LLM.RateLimit,
		"openai.timeout": c.OpenAI.Timeout,
		"claude.timeout": c.Claude.Timeout,
		"gemini.timeout": c.Gemini.Timeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration '%s': %w", name, value, err)
		}
	}

	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.Scenario.Count < 1 {
		return fmt.Errorf("scenario.count must be at least 1, got %d", c.Scenario.Count)
	}
	if c.Scenario.Validate && c.Scenario.MaxAttempts < 1 {
		return fmt.Errorf("scenario.max_attempts must be at least 1, got %d", c.Scenario.MaxAttempts)
	}
	if strings.TrimSpace(c.Scenario.Intent) == "" {
		return fmt.Errorf("scenario.intent must not be empty")
	}
	if c.Scenario.Publish && !c.Scenario.Validate {
		return fmt.Errorf("scenario.publish requires scenario.validate")
	}

	return nil
}

// ResolveAPIKey returns the credential for the given provider.
// Environment variables have already been folded into config by LoadFromFiles.
func ResolveAPIKey(config *Config, provider LLMProvider) (string, error) {
	var key, envName string
	switch provider {
	case LLMProviderOpenAI:
		key, envName = config.OpenAI.APIKey, "OPENAI_API_KEY"
	case LLMProviderClaude:
		key, envName = config.Claude.APIKey, "ANTHROPIC_API_KEY"
	case LLMProviderGemini:
		key, envName = config.Gemini.APIKey, "GEMINI_API_KEY"
	default:
		return "", fmt.Errorf("unknown provider '%s'", provider)
	}

	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: set %s or %s.api_key in config", ErrMissingAPIKey, envName, provider)
	}
	return key, nil
}

// DurationOr parses value, returning fallback when it is empty or invalid.
// Call Validate first to surface invalid values as errors.
func DurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
