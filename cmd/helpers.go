package cmd

import (
	"fmt"

	"github.com/ziadkadry99/nae/internal/config"
	"github.com/ziadkadry99/nae/internal/db"
	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/history"
	"github.com/ziadkadry99/nae/internal/kvstore"
	"github.com/ziadkadry99/nae/internal/llm"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `nae init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// createLLMProviderFromConfig creates an inference provider with rate limiting
// and metrics applied.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimitRPM)
	}
	return llm.NewInstrumentedProvider(provider, logger), nil
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Model:           cfg.Model,
		AssistantModel:  cfg.EffectiveAssistantModel(),
		MaxOutputTokens: cfg.MaxOutputTokens,
		ThinkingBudget:  cfg.ThinkingBudget,
		SearchGrounding: cfg.SearchGrounding,
	}
}

// pipeline bundles everything a command needs to run the analysis stages.
type pipeline struct {
	database  *db.DB
	assembler *engine.Assembler
	analyzer  *engine.Analyzer
	assistant *engine.Assistant
	history   *history.Store
}

func (p *pipeline) Close() error {
	return p.database.Close()
}

// openPipeline builds the provider and opens the history database.
func openPipeline(cfg *config.Config) (*pipeline, error) {
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating inference provider: %w", err)
	}
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	ec := engineConfig(cfg)
	return &pipeline{
		database:  database,
		assembler: engine.NewAssembler(provider, ec, logger),
		analyzer:  engine.NewAnalyzer(provider, ec, logger),
		assistant: engine.NewAssistant(provider, ec, logger),
		history:   history.NewStore(kvstore.NewSQLite(database), logger),
	}, nil
}

// openHistory opens only the history store, for commands that never call the
// inference service.
func openHistory(cfg *config.Config) (*history.Store, func() error, error) {
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return history.NewStore(kvstore.NewSQLite(database), logger), database.Close, nil
}
