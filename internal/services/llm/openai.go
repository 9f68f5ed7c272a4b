package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/interfaces"
)

// OpenAIProvider implements Provider using the OpenAI chat completions API
type OpenAIProvider struct {
	config  *common.OpenAIConfig
	logger  arbor.ILogger
	client  *openai.Client
	timeout time.Duration
}

// NewOpenAIProvider creates an OpenAI provider. config.BaseURL, when set,
// points the client at any OpenAI-compatible endpoint.
func NewOpenAIProvider(config *common.OpenAIConfig, apiKey string, logger arbor.ILogger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	timeout := common.DurationOr(config.Timeout, 2*time.Minute)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("OpenAI provider initialized")

	return &OpenAIProvider{
		config:  config,
		logger:  logger,
		client:  openai.NewClientWithConfig(clientConfig),
		timeout: timeout,
	}
}

// convertMessagesToOpenAI maps roles one-to-one and keeps chronological order
func convertMessagesToOpenAI(messages []interfaces.Message) ([]openai.ChatCompletionMessage, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case interfaces.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case interfaces.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case interfaces.RoleUser:
			role = openai.ChatMessageRoleUser
		default:
			return nil, fmt.Errorf("unsupported message role '%s'", msg.Role)
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	return converted, nil
}

// GenerateContent sends the conversation as one chat completion request
func (p *OpenAIProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	messages, err := convertMessagesToOpenAI(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	chatRequest := openai.ChatCompletionRequest{
		Model:    p.config.Model,
		Messages: messages,
	}
	if p.config.Temperature > 0 {
		chatRequest.Temperature = p.config.Temperature
	}
	if p.config.MaxTokens > 0 {
		chatRequest.MaxCompletionTokens = p.config.MaxTokens
	}
	// JSON mode only guarantees syntactically valid JSON; the schema itself
	// is still enforced by the caller
	if len(request.OutputSchema) > 0 {
		chatRequest.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(timeoutCtx, chatRequest)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, fmt.Errorf("empty response from OpenAI API")
	}

	return &ContentResponse{
		Text:     text,
		Provider: common.LLMProviderOpenAI,
		Model:    resp.Model,
	}, nil
}

// GetProviderType returns common.LLMProviderOpenAI
func (p *OpenAIProvider) GetProviderType() common.LLMProvider {
	return common.LLMProviderOpenAI
}
