package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the Google Gemini API
type GeminiProvider struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiProvider creates a Gemini provider backed by the Gemini API
func NewGeminiProvider(ctx context.Context, config *common.GeminiConfig, apiKey string, logger arbor.ILogger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	timeout := common.DurationOr(config.Timeout, 2*time.Minute)

	logger.Debug().
		Str("model", config.Model).
		Bool("structured_output", config.StructuredOutput).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return &GeminiProvider{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// convertMessagesToGemini splits out the system turn for SystemInstruction and
// maps assistant turns to the model role.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	hasUserMessage := false

	for _, msg := range messages {
		var geminiRole string
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		case interfaces.RoleAssistant:
			geminiRole = genai.RoleModel
		case interfaces.RoleUser:
			hasUserMessage = true
			geminiRole = genai.RoleUser
		default:
			return nil, "", fmt.Errorf("unsupported message role '%s'", msg.Role)
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	return contents, systemText, nil
}

// GenerateContent sends the conversation to Gemini. With structured output
// enabled the request schema is enforced by the API as the response schema.
func (p *GeminiProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	config := p.generateConfig(systemText, request.OutputSchema)

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Models.GenerateContent(timeoutCtx, p.config.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return &ContentResponse{
		Text:     responseText,
		Provider: common.LLMProviderGemini,
		Model:    p.config.Model,
	}, nil
}

// generateConfig builds the request config. A zero temperature leaves the
// model default in place.
func (p *GeminiProvider) generateConfig(systemText string, outputSchema map[string]interface{}) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if p.config.Temperature > 0 {
		config.Temperature = genai.Ptr(p.config.Temperature)
	}

	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	if p.config.StructuredOutput && len(outputSchema) > 0 {
		genaiSchema, err := convertToGenaiSchema(outputSchema)
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to convert output schema")
		} else if genaiSchema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = genaiSchema
		}
	}

	return config
}

// GetProviderType returns common.LLMProviderGemini
func (p *GeminiProvider) GetProviderType() common.LLMProvider {
	return common.LLMProviderGemini
}

// convertToGenaiSchema converts a JSON schema held as a map to a genai.Schema.
// Keywords genai cannot express are ignored.
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		default:
			return nil, fmt.Errorf("unsupported schema type '%s'", typeStr)
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	schema.Enum = stringList(schemaMap["enum"])
	schema.Required = stringList(schemaMap["required"])

	if v, ok := numberValue(schemaMap["minimum"]); ok {
		schema.Minimum = genai.Ptr(v)
	}
	if v, ok := numberValue(schemaMap["maximum"]); ok {
		schema.Maximum = genai.Ptr(v)
	}
	if v, ok := numberValue(schemaMap["minLength"]); ok {
		schema.MinLength = genai.Ptr(int64(v))
	}
	if v, ok := numberValue(schemaMap["maxLength"]); ok {
		schema.MaxLength = genai.Ptr(int64(v))
	}

	if itemsMap, ok := schemaMap["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = itemSchema
	}

	if propsMap, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(propsMap))
		for propName, propVal := range propsMap {
			propMap, ok := propVal.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("property '%s' is not an object", propName)
			}
			propSchema, err := convertToGenaiSchema(propMap)
			if err != nil {
				return nil, fmt.Errorf("failed to convert property '%s': %w", propName, err)
			}
			schema.Properties[propName] = propSchema
		}
	}

	return schema, nil
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func numberValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}
