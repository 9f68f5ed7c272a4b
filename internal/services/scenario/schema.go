package scenario

import (
	"sync"

	"github.com/ternarybob/gamemaster/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// OutputSchema returns the scenario JSON Schema. It is sent to providers that
// support response schemas and used to check every reply.
func OutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"required": []interface{}{
			"headline", "summary", "sector", "magnitude", "duration", "sentiment",
		},
		"properties": map[string]interface{}{
			"headline": map[string]interface{}{
				"type":        "string",
				"description": "News headline for the scenario",
				"minLength":   models.HeadlineMinLen,
				"maxLength":   models.HeadlineMaxLen,
			},
			"summary": map[string]interface{}{
				"type":        "string",
				"description": "Brief description of the scenario",
				"minLength":   models.SummaryMinLen,
				"maxLength":   models.SummaryMaxLen,
			},
			"sector": map[string]interface{}{
				"type":        "string",
				"description": "Affected sector in upper case, taken from the market data",
				"pattern":     "^[^a-z]+$",
			},
			"magnitude": map[string]interface{}{
				"type":        "number",
				"description": "Effect strength; negative lowers prices, positive raises them",
				"minimum":     models.MagnitudeMin,
				"maximum":     models.MagnitudeMax,
			},
			"duration": map[string]interface{}{
				"type":        "integer",
				"description": "Effect duration in seconds",
				"minimum":     models.DurationMin,
				"maximum":     models.DurationMax,
			},
			"sentiment": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{
					string(models.SentimentPositive),
					string(models.SentimentNegative),
					string(models.SentimentNeutral),
				},
			},
		},
	}
}

var (
	compiledOnce   sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// compiledOutputSchema compiles OutputSchema once for reply validation
func compiledOutputSchema() (*gojsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(OutputSchema()))
	})
	return compiledSchema, compileErr
}
