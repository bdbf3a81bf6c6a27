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
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [asset]",
	Short: "Fetch live market context for an asset",
	Long: `Asks the inference service for the factual, mediatic, social and behavioral
context of an asset and prints it. Save the JSON output with --out and feed it to
'nae analyze --context-file' to analyze an edited snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("event", "", "event or context to focus the ingestion on")
	ingestCmd.Flags().Bool("json", false, "print the context object as JSON")
	ingestCmd.Flags().String("out", "", "write the context object as JSON to this file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	asset := strings.ToUpper(args[0])
	event, _ := cmd.Flags().GetString("event")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	outPath, _ := cmd.Flags().GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	reporter := progress.NewReporter(os.Stderr)
	reporter.Start(-1, fmt.Sprintf("Ingesting %s", asset))
	ing, err := p.assembler.Ingest(ctx, asset, event)
	reporter.Finish()
	if err != nil {
		return err
	}

	if outPath != "" {
		data, err := json.MarshalIndent(ing.Context, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("writing context: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Context written to %s\n", outPath)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ing.Context)
	}

	printContext(ing)
	return nil
}

func printContext(ing *engine.Ingestion) {
	for _, ls := range engine.LayerSections {
		fmt.Printf("== %s ==\n%s\n\n", strings.ToUpper(ls.Field), ing.Context.Get(ls.Field))
	}
	if len(ing.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range ing.Sources {
			fmt.Printf("  %s\n", src)
		}
	}
}
