package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/interfaces"
	"golang.org/x/time/rate"
)

// ContentRequest represents a provider-agnostic content generation request
type ContentRequest struct {
	Messages     []interfaces.Message
	OutputSchema map[string]interface{} // JSON schema for structured output, honored where the provider supports it
}

// ContentResponse represents a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider common.LLMProvider
	Model    string
}

// Provider defines the interface for AI content generation
type Provider interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
	GetProviderType() common.LLMProvider
}

// ProviderFactory resolves the configured provider once at startup and
// serves chat completions through it. It implements interfaces.ChatService.
type ProviderFactory struct {
	provider     Provider
	logger       arbor.ILogger
	limiter      *rate.Limiter
	retryConfig  *RetryConfig
	outputSchema map[string]interface{}
}

// FactoryOption configures the ProviderFactory
type FactoryOption func(*ProviderFactory)

// WithOutputSchema attaches a JSON schema to every request
func WithOutputSchema(schema map[string]interface{}) FactoryOption {
	return func(f *ProviderFactory) {
		f.outputSchema = schema
	}
}

// WithProvider replaces the configured provider
func WithProvider(provider Provider) FactoryOption {
	return func(f *ProviderFactory) {
		f.provider = provider
	}
}

// NewProviderFactory builds the provider named by llm.default_provider.
// A missing credential for that provider is returned as common.ErrMissingAPIKey.
func NewProviderFactory(config *common.Config, logger arbor.ILogger, opts ...FactoryOption) (*ProviderFactory, error) {
	f := &ProviderFactory{
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Every(common.DurationOr(config.LLM.RateLimit, time.Second)), 1),
		retryConfig: NewRetryConfig(config.LLM.MaxRetries),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.provider == nil {
		provider, err := newProvider(config, logger)
		if err != nil {
			return nil, err
		}
		f.provider = provider
	}

	return f, nil
}

func newProvider(config *common.Config, logger arbor.ILogger) (Provider, error) {
	providerType := config.LLM.DefaultProvider

	apiKey, err := common.ResolveAPIKey(config, providerType)
	if err != nil {
		return nil, err
	}

	switch providerType {
	case common.LLMProviderOpenAI:
		return NewOpenAIProvider(&config.OpenAI, apiKey, logger), nil
	case common.LLMProviderClaude:
		return NewClaudeProvider(&config.Claude, apiKey, logger), nil
	case common.LLMProviderGemini:
		provider, err := NewGeminiProvider(context.Background(), &config.Gemini, apiKey, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerType)
	}
}

// DetectProvider determines the provider from a model string such as
// "claude-sonnet-4-20250514", "gemini/gemini-2.5-flash" or "openai/gpt-5.1".
// Unrecognised names fall back to the given provider.
func DetectProvider(model string, fallback common.LLMProvider) common.LLMProvider {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return fallback
	}

	switch {
	case strings.HasPrefix(model, "claude/"), strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude-"):
		return common.LLMProviderClaude
	case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "google/"), strings.HasPrefix(model, "gemini-"):
		return common.LLMProviderGemini
	case strings.HasPrefix(model, "openai/"), strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return common.LLMProviderOpenAI
	}

	return fallback
}

// NormalizeModel strips a provider prefix from a model string
func NormalizeModel(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}

// ApplyModel selects the provider for model and sets that provider's model
// name. An empty model leaves config unchanged.
func ApplyModel(config *common.Config, model string) {
	if strings.TrimSpace(model) == "" {
		return
	}

	provider := DetectProvider(model, config.LLM.DefaultProvider)
	name := NormalizeModel(strings.TrimSpace(model))

	config.LLM.DefaultProvider = provider
	switch provider {
	case common.LLMProviderOpenAI:
		config.OpenAI.Model = name
	case common.LLMProviderClaude:
		config.Claude.Model = name
	case common.LLMProviderGemini:
		config.Gemini.Model = name
	}
}

// GetProviderType returns the provider serving completions
func (f *ProviderFactory) GetProviderType() common.LLMProvider {
	return f.provider.GetProviderType()
}

// Chat sends the full message history to the provider and returns the reply
// text. Rate-limit errors are retried only when llm.max_retries > 0; every
// other failure is returned to the caller unchanged apart from wrapping.
func (f *ProviderFactory) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	request := &ContentRequest{
		Messages:     messages,
		OutputSchema: f.outputSchema,
	}

	var resp *ContentResponse
	var apiErr error
	startTime := time.Now()

	for attempt := 0; attempt <= f.retryConfig.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, apiErr = f.provider.GenerateContent(ctx, request)
		if apiErr == nil {
			break
		}

		if attempt == f.retryConfig.MaxRetries || !IsRateLimitError(apiErr) {
			break
		}

		backoff := f.retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		f.logger.Warn().
			Str("provider", string(f.provider.GetProviderType())).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying rate-limited completion call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		f.logger.Error().
			Str("provider", string(f.provider.GetProviderType())).
			Int("message_count", len(messages)).
			Err(apiErr).
			Msg("Chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", apiErr)
	}

	f.logger.Debug().
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Int("message_count", len(messages)).
		Int("response_length", len(resp.Text)).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion completed successfully")

	return resp.Text, nil
}
