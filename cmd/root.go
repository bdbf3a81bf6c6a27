package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/config"
	"github.com/ziadkadry99/nae/internal/logging"
)

var (
	cfgFile string
	verbose bool

	// logger is built from the config in PersistentPreRunE. Commands that run
	// before a config exists (init, version) see a no-op logger.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "nae",
	Short: "Narrative divergence analysis for tradable assets",
	Long: `nae gathers live factual, media, social and positioning context for an
asset, asks an inference service to score how far the narrative has drifted
from the facts, and keeps the resulting analyses for review and follow-up
questions. It runs as a CLI, an HTTP server, or an MCP server on stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			// Missing or broken config is reported by the command that needs it.
			return nil
		}
		logCfg := logging.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		l, err := logging.New(logCfg)
		if err != nil {
			return fmt.Errorf("configuring logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
