package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/interfaces"
	"google.golang.org/genai"
)

func TestConvertMessagesToGemini(t *testing.T) {
	messages := append(testMessages(), interfaces.Message{Role: interfaces.RoleAssistant, Content: "{}"})

	contents, system, err := convertMessagesToGemini(messages)
	require.NoError(t, err)

	assert.Equal(t, "You produce JSON", system)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleUser, contents[1].Role)
	assert.Equal(t, genai.RoleModel, contents[2].Role)
	assert.Equal(t, `Market Data: {"stocks":[]}`, contents[1].Parts[0].Text)
}

func TestConvertToGenaiSchema(t *testing.T) {
	schemaMap := map[string]interface{}{
		"type":     "object",
		"required": []string{"headline", "magnitude"},
		"properties": map[string]interface{}{
			"headline": map[string]interface{}{
				"type":      "string",
				"minLength": 5,
				"maxLength": 30,
			},
			"magnitude": map[string]interface{}{
				"type":    "number",
				"minimum": -1.0,
				"maximum": 1.0,
			},
			"duration": map[string]interface{}{
				"type":    "integer",
				"minimum": 600,
				"maximum": 3600,
			},
			"sentiment": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"positive", "negative", "neutral"},
			},
		},
	}

	schema, err := convertToGenaiSchema(schemaMap)
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"headline", "magnitude"}, schema.Required)

	headline := schema.Properties["headline"]
	require.NotNil(t, headline)
	assert.Equal(t, int64(5), *headline.MinLength)
	assert.Equal(t, int64(30), *headline.MaxLength)

	magnitude := schema.Properties["magnitude"]
	assert.Equal(t, genai.TypeNumber, magnitude.Type)
	assert.Equal(t, -1.0, *magnitude.Minimum)
	assert.Equal(t, 1.0, *magnitude.Maximum)

	duration := schema.Properties["duration"]
	assert.Equal(t, genai.TypeInteger, duration.Type)
	assert.Equal(t, 600.0, *duration.Minimum)

	assert.Equal(t, []string{"positive", "negative", "neutral"}, schema.Properties["sentiment"].Enum)
}

func TestConvertToGenaiSchema_Errors(t *testing.T) {
	schema, err := convertToGenaiSchema(nil)
	assert.NoError(t, err)
	assert.Nil(t, schema)

	_, err = convertToGenaiSchema(map[string]interface{}{"type": "tuple"})
	assert.Error(t, err)

	_, err = convertToGenaiSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"bad": "string"},
	})
	assert.Error(t, err)
}

func TestGeminiGenerateConfig_Temperature(t *testing.T) {
	provider := &GeminiProvider{
		config: &common.GeminiConfig{Model: "gemini-2.5-flash"},
		logger: arbor.NewLogger(),
	}

	config := provider.generateConfig("You produce JSON", nil)
	assert.Nil(t, config.Temperature, "zero temperature keeps the model default")
	assert.Nil(t, config.ResponseSchema)
	require.NotNil(t, config.SystemInstruction)

	provider.config.Temperature = 0.4
	config = provider.generateConfig("", nil)
	require.NotNil(t, config.Temperature)
	assert.Equal(t, float32(0.4), *config.Temperature)
	assert.Nil(t, config.SystemInstruction)
}

func TestGeminiGenerateConfig_StructuredOutput(t *testing.T) {
	provider := &GeminiProvider{
		config: &common.GeminiConfig{StructuredOutput: true},
		logger: arbor.NewLogger(),
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"headline": map[string]interface{}{"type": "string"}},
	}

	config := provider.generateConfig("", schema)
	assert.Equal(t, "application/json", config.ResponseMIMEType)
	require.NotNil(t, config.ResponseSchema)
	assert.Equal(t, genai.TypeObject, config.ResponseSchema.Type)

	provider.config.StructuredOutput = false
	assert.Nil(t, provider.generateConfig("", schema).ResponseSchema)
}
