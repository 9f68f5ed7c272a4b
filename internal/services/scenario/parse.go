package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/gamemaster/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrNoJSONObject is returned when a reply contains no JSON object at all
var ErrNoJSONObject = errors.New("reply does not contain a JSON object")

// extractJSON returns the text between the first '{' and the last '}',
// which drops code fences and any prose the model wrapped around the object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

// ParseScenario treats reply as untrusted text. It extracts the JSON object,
// checks it against OutputSchema, decodes it and validates the field bounds
// and the sector against snapshot.
func ParseScenario(reply string, snapshot models.MarketSnapshot) (*models.Scenario, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return nil, ErrNoJSONObject
	}

	schema, err := compiledOutputSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, resultErr := range result.Errors() {
			problems = append(problems, resultErr.String())
		}
		return nil, fmt.Errorf("schema validation errors: %s", strings.Join(problems, "; "))
	}

	var scenario models.Scenario
	if err := json.Unmarshal([]byte(raw), &scenario); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}

	if err := scenario.ValidateFor(snapshot); err != nil {
		return nil, err
	}

	return &scenario, nil
}
