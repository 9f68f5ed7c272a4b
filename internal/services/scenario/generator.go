// Package scenario drives the conversation with the completion service that
// turns market snapshots into scenario events.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/interfaces"
	"github.com/ternarybob/gamemaster/internal/models"
)

// DefaultMaxAttempts bounds GenerateScenario when no option overrides it
const DefaultMaxAttempts = 3

// ErrScenarioRejected is returned when every attempt produced an invalid reply
var ErrScenarioRejected = errors.New("no valid scenario produced")

// Generator appends requests to a conversation and submits the whole history
// to the completion service. It holds no conversation state of its own.
type Generator struct {
	chat        interfaces.ChatService
	logger      arbor.ILogger
	maxAttempts int
}

// GeneratorOption configures the Generator
type GeneratorOption func(*Generator)

// WithMaxAttempts sets how many replies GenerateScenario requests before giving up
func WithMaxAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// Result is a validated scenario together with the reply it was parsed from
type Result struct {
	Scenario *models.Scenario
	Reply    string
	Attempts int
}

// NewGenerator creates a Generator backed by chat
func NewGenerator(chat interfaces.ChatService, logger arbor.ILogger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		chat:        chat,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// NewConversation starts a conversation whose system turn is SystemInstruction
func NewConversation() *models.Conversation {
	return models.NewConversation(SystemInstruction)
}

// Generate appends intent and the labelled snapshot as two user turns, sends
// the full history and appends the reply as an assistant turn. The reply is
// returned unchanged. If the completion call fails the two user turns remain
// and no assistant turn is added.
//
// An empty snapshot is not rejected here; callers decide whether to generate.
func (g *Generator) Generate(ctx context.Context, conv *models.Conversation, intent string, snapshot models.MarketSnapshot) (string, error) {
	payload, err := snapshot.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode market snapshot: %w", err)
	}

	if err := conv.Append(interfaces.RoleUser, intent); err != nil {
		return "", err
	}
	if err := conv.Append(interfaces.RoleUser, MarketDataPrefix+string(payload)); err != nil {
		return "", err
	}

	g.logger.Debug().
		Str("conversation_id", conv.ID()).
		Int("turns", conv.Len()).
		Int("snapshot_bytes", len(payload)).
		Msg("Requesting scenario")

	reply, err := g.chat.Chat(ctx, conv.Messages())
	if err != nil {
		return "", fmt.Errorf("failed to generate scenario: %w", err)
	}

	if err := conv.Append(interfaces.RoleAssistant, reply); err != nil {
		return "", err
	}

	return reply, nil
}

// GenerateScenario calls Generate until a reply parses and validates against
// snapshot. Rejected replies stay in the conversation and the next intent
// tells the model why. Completion failures are returned without retrying.
func (g *Generator) GenerateScenario(ctx context.Context, conv *models.Conversation, intent string, snapshot models.MarketSnapshot) (*Result, error) {
	currentIntent := intent
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		reply, err := g.Generate(ctx, conv, currentIntent, snapshot)
		if err != nil {
			return nil, err
		}

		scenario, err := ParseScenario(reply, snapshot)
		if err == nil {
			g.logger.Info().
				Str("conversation_id", conv.ID()).
				Str("headline", scenario.Headline).
				Str("sector", scenario.Sector).
				Float64("magnitude", scenario.Magnitude).
				Int("attempt", attempt).
				Msg("Scenario generated")
			return &Result{Scenario: scenario, Reply: reply, Attempts: attempt}, nil
		}

		lastErr = err
		g.logger.Warn().
			Str("conversation_id", conv.ID()).
			Int("attempt", attempt).
			Int("max_attempts", g.maxAttempts).
			Err(err).
			Msg("Scenario reply rejected")

		currentIntent = correctionIntent(intent, err)
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrScenarioRejected, g.maxAttempts, lastErr)
}
