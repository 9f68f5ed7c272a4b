package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/gamemaster/internal/app"
	"github.com/ternarybob/gamemaster/internal/common"
	"github.com/ternarybob/gamemaster/internal/services/llm"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	count        = flag.Int("count", 0, "Number of scenarios to generate in one conversation (overrides config)")
	prompt       = flag.String("prompt", "", "Intent message sent with the market data (overrides config)")
	model        = flag.String("model", "", "Model name, optionally provider-prefixed (e.g. claude/claude-sonnet-4-20250514)")
	raw          = flag.Bool("raw", false, "Print the model reply verbatim without validation")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashReport()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Gamemaster version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence:
	// 1. Load config (defaults -> file1 -> file2 -> ... -> .env -> env)
	// 2. Apply CLI overrides
	// 3. Initialize logger
	// 4. Build the app (fails on a missing credential before any fetch)
	// 5. Run once

	if len(configFiles) == 0 {
		if _, err := os.Stat("gamemaster.toml"); err == nil {
			configFiles = append(configFiles, "gamemaster.toml")
		} else if _, err := os.Stat("deployments/local/gamemaster.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/gamemaster.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := common.NewConsoleLogger()
		tempLogger.Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *count, *prompt, *raw)
	llm.ApplyModel(config, *model)

	logger := common.InitLogger(config)

	if err := config.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger.Debug().
		Str("environment", config.Environment).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Strs("config_files", configFiles).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Scenario generation failed")
		stop()
		os.Exit(1)
	}
}
