package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/progress"
	"github.com/ziadkadry99/nae/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [asset]",
	Short: "Run a narrative divergence analysis for an asset",
	Long: `Ingests live context for the asset (or reads it from --context-file), submits
it for analysis and stores the validated record in history.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("event", "", "event or context to analyze around")
	analyzeCmd.Flags().String("context-file", "", "JSON context object to analyze instead of ingesting")
	analyzeCmd.Flags().Bool("json", false, "print the analysis record as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	asset := strings.ToUpper(args[0])
	event, _ := cmd.Flags().GetString("event")
	contextFile, _ := cmd.Flags().GetString("context-file")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	steps := 2
	if contextFile != "" {
		steps = 1
	}
	reporter := progress.NewReporter(os.Stderr)
	reporter.Start(steps, fmt.Sprintf("Analyzing %s", asset))

	var snapshot engine.ContextObject
	if contextFile != "" {
		data, err := os.ReadFile(contextFile)
		if err != nil {
			reporter.Finish()
			return fmt.Errorf("reading context file: %w", err)
		}
		if err := json.Unmarshal(data, &snapshot); err != nil {
			reporter.Finish()
			return fmt.Errorf("parsing context file: %w", err)
		}
	} else {
		snapshot, err = p.assembler.BuildContext(ctx, asset, event)
		if err != nil {
			reporter.Finish()
			return err
		}
		reporter.Step(1, "context ingested")
	}

	rec, err := p.analyzer.Analyze(ctx, asset, event, snapshot)
	reporter.Step(steps, "analysis received")
	reporter.Finish()
	if err != nil {
		return err
	}

	if err := p.history.Save(ctx, rec); err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	md, err := report.Markdown(rec)
	if err != nil {
		return err
	}
	fmt.Print(md)
	fmt.Fprintf(os.Stderr, "\nSaved analysis %s. Ask about it with `nae ask --id %s`.\n", rec.ID, rec.ID)
	return nil
}
