package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/interfaces"
)

// ClaudeProvider implements Provider using the Anthropic Messages API
type ClaudeProvider struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	maxTokens int
	timeout   time.Duration
}

// NewClaudeProvider creates a Claude provider. SDK retries are disabled so
// that retry policy stays with the ProviderFactory.
func NewClaudeProvider(config *common.ClaudeConfig, apiKey string, logger arbor.ILogger, opts ...option.RequestOption) *ClaudeProvider {
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	timeout := common.DurationOr(config.Timeout, 2*time.Minute)

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", maxTokens).
		Dur("timeout", timeout).
		Msg("Claude provider initialized")

	return &ClaudeProvider{
		config:    config,
		logger:    logger,
		client:    anthropic.NewClient(clientOpts...),
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// convertMessagesToClaude splits out the system turn, which Claude takes as a
// separate parameter, and keeps user/assistant turns in order.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	hasUserMessage := false

	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText == "" {
				systemText = msg.Content
			}
		case interfaces.RoleAssistant:
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case interfaces.RoleUser:
			hasUserMessage = true
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			return nil, "", fmt.Errorf("unsupported message role '%s'", msg.Role)
		}
	}

	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	return claudeMessages, systemText, nil
}

// GenerateContent sends the conversation to Claude. OutputSchema is carried
// by the system instruction; Claude has no response schema parameter.
func (p *ClaudeProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(p.maxTokens),
		Messages:  claudeMessages,
	}

	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.config.Temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	return &ContentResponse{
		Text:     response.String(),
		Provider: common.LLMProviderClaude,
		Model:    string(resp.Model),
	}, nil
}

// GetProviderType returns common.LLMProviderClaude
func (p *ClaudeProvider) GetProviderType() common.LLMProvider {
	return common.LLMProviderClaude
}
