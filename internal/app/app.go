package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/interfaces"
	"github.com/ternarybob/gamemaster/internal/models"
	"github.com/ternarybob/gamemaster/internal/services/events"
	"github.com/ternarybob/gamemaster/internal/services/llm"
	"github.com/ternarybob/gamemaster/internal/services/market"
	"github.com/ternarybob/gamemaster/internal/services/scenario"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Completion service (provider selected by llm.default_provider)
	ChatService interfaces.ChatService

	// Market data and scenario services
	MarketClient *market.Client
	Generator    *scenario.Generator

	// Simulator event publisher, nil unless scenario.publish is set
	Publisher *events.Publisher

	// Output receives the scenario text
	Output io.Writer
}

// New initializes the application with all dependencies. A missing
// credential for the selected provider fails here, before any network call.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	factory, err := llm.NewProviderFactory(cfg, logger, llm.WithOutputSchema(scenario.OutputSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion service: %w", err)
	}

	logger.Info().
		Str("provider", string(factory.GetProviderType())).
		Msg("Completion service initialized")

	return newApp(cfg, logger, factory, os.Stdout), nil
}

// newApp wires the services around an existing chat service
func newApp(cfg *common.Config, logger arbor.ILogger, chat interfaces.ChatService, out io.Writer) *App {
	app := &App{
		Config:      cfg,
		Logger:      logger,
		ChatService: chat,
		Output:      out,
	}

	app.initServices()
	return app
}

func (a *App) initServices() {
	a.MarketClient = market.NewClient(
		a.Config.Market.BaseURL,
		market.WithPath(a.Config.Market.StocksPath),
		market.WithTimeout(common.DurationOr(a.Config.Market.Timeout, market.DefaultTimeout)),
		market.WithLogger(a.Logger),
	)

	a.Generator = scenario.NewGenerator(
		a.ChatService,
		a.Logger,
		scenario.WithMaxAttempts(a.Config.Scenario.MaxAttempts),
	)

	if a.Config.Scenario.Publish {
		a.Publisher = events.NewPublisher(
			a.Config.Market.BaseURL,
			events.WithPath(a.Config.Scenario.PublishPath),
			events.WithLogger(a.Logger),
		)
	}

	a.Logger.Debug().
		Str("market_url", a.MarketClient.Endpoint()).
		Bool("validate", a.Config.Scenario.Validate).
		Bool("publish", a.Config.Scenario.Publish).
		Int("count", a.Config.Scenario.Count).
		Msg("Services initialized")
}

// Run fetches one market snapshot and, if it holds data, generates and prints
// scenario.count scenarios in a single conversation. An empty snapshot ends
// the run without output and without error.
func (a *App) Run(ctx context.Context) error {
	startTime := time.Now()

	snapshot := a.MarketClient.Fetch(ctx)
	if snapshot.IsEmpty() {
		a.Logger.Warn().
			Str("url", a.MarketClient.Endpoint()).
			Msg("No market data available, skipping scenario generation")
		return nil
	}

	conv := scenario.NewConversation()
	a.Logger.Debug().
		Str("conversation_id", conv.ID()).
		Int("sectors", len(snapshot.Sectors())).
		Msg("Conversation started")

	for i := 0; i < a.Config.Scenario.Count; i++ {
		if err := a.generateOne(ctx, conv, snapshot); err != nil {
			return err
		}
	}

	a.Logger.Info().
		Str("conversation_id", conv.ID()).
		Int("scenarios", a.Config.Scenario.Count).
		Int("turns", conv.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Run completed")

	return nil
}

// generateOne produces a single scenario on conv and writes it to Output.
// Without validation the reply is printed verbatim.
func (a *App) generateOne(ctx context.Context, conv *models.Conversation, snapshot models.MarketSnapshot) error {
	intent := a.Config.Scenario.Intent

	if !a.Config.Scenario.Validate {
		reply, err := a.Generator.Generate(ctx, conv, intent, snapshot)
		if err != nil {
			return err
		}
		return a.print(reply)
	}

	result, err := a.Generator.GenerateScenario(ctx, conv, intent, snapshot)
	if err != nil {
		return err
	}

	if err := a.print(scenarioText(result)); err != nil {
		return err
	}

	if a.Publisher != nil {
		if _, err := a.Publisher.Publish(ctx, result.Scenario); err != nil {
			a.Logger.Error().
				Str("headline", result.Scenario.Headline).
				Err(err).
				Msg("Failed to publish scenario")
			return err
		}
	}

	return nil
}

func (a *App) print(text string) error {
	if _, err := fmt.Fprintln(a.Output, text); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}
	return nil
}

// scenarioText renders the validated scenario as compact JSON so stdout
// stays machine-readable even when the reply wrapped it in prose.
func scenarioText(result *scenario.Result) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result.Scenario); err != nil {
		return result.Reply
	}
	return strings.TrimRight(buf.String(), "\n")
}
