package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/nae/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing ingestion, analysis and history tools to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := openPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "nae MCP server started on stdio (provider=%s, analyses=%d)\n", cfg.Provider, len(p.history.List(cmd.Context())))

		srv := mcpserver.NewServer(p.assembler, p.analyzer, p.assistant, p.history, logger)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
