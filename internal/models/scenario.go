// -----------------------------------------------------------------------
// Scenario - the market event the completion service is asked to produce
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Sentiment is the overall tone of a scenario
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Scenario field bounds. Lengths are counted in characters, not bytes.
const (
	HeadlineMinLen = 5
	HeadlineMaxLen = 30
	SummaryMinLen  = 10
	SummaryMaxLen  = 119
	MagnitudeMin   = -1.0
	MagnitudeMax   = 1.0
	DurationMin    = 600
	DurationMax    = 3600
)

// ErrUnknownSector is returned when a scenario targets a sector the snapshot does not list
var ErrUnknownSector = errors.New("sector not present in market data")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so messages match what the model sees
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Scenario is a synthetic news event with a quantified effect on one sector.
// Magnitude below zero pushes prices down, above zero pushes them up.
type Scenario struct {
	Headline  string    `json:"headline" validate:"required,min=5,max=30"`
	Summary   string    `json:"summary" validate:"required,min=10,max=119"`
	Sector    string    `json:"sector" validate:"required,uppercase"`
	Magnitude float64   `json:"magnitude" validate:"gte=-1,lte=1"`
	Duration  int       `json:"duration" validate:"gte=600,lte=3600"`
	Sentiment Sentiment `json:"sentiment" validate:"required,oneof=positive negative neutral"`
}

// UnmarshalJSON accepts any integral JSON number for duration (1800, 1800.0,
// 1.8e3), matching the "integer" type of the output schema.
func (s *Scenario) UnmarshalJSON(data []byte) error {
	type scenarioAlias Scenario
	aux := struct {
		*scenarioAlias
		Duration json.Number `json:"duration"`
	}{scenarioAlias: (*scenarioAlias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Duration == "" {
		s.Duration = 0
		return nil
	}
	duration, err := aux.Duration.Float64()
	if err != nil || duration != math.Trunc(duration) || math.Abs(duration) > math.MaxInt32 {
		return fmt.Errorf("duration must be a whole number of seconds, got %s", aux.Duration)
	}
	s.Duration = int(duration)
	return nil
}

// Validate checks field bounds using go-playground/validator
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid scenario: %s", describeFieldErrors(fieldErrs))
		}
		return fmt.Errorf("invalid scenario: %w", err)
	}
	return nil
}

// ValidateFor checks field bounds and, when the snapshot exposes any sector
// identifiers, that the scenario's sector is one of them.
func (s *Scenario) ValidateFor(snapshot MarketSnapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	sectors := snapshot.Sectors()
	if len(sectors) == 0 {
		return nil
	}
	if !snapshot.HasSector(s.Sector) {
		return fmt.Errorf("%w: %s (known: %s)", ErrUnknownSector, s.Sector, strings.Join(sectors, ", "))
	}
	return nil
}

// ToEventPayload converts the scenario to the simulator's event shape
func (s *Scenario) ToEventPayload() *NewsEventPayload {
	return &NewsEventPayload{
		Headline:      s.Headline,
		Summary:       s.Summary,
		SectorApplied: strings.ToUpper(s.Sector),
		Magnitude:     s.Magnitude,
		Duration:      s.Duration,
		Sentiment:     strings.ToUpper(string(s.Sentiment)),
	}
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
