package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage stored analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, _ := cmd.Flags().GetString("asset")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		return withHistory(func(ctx context.Context, h historyStore) error {
			records, err := h.Filter(ctx, asset)
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Println("No analyses stored.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tASSET\tTIME\tSTATE\tPERMISSION\tSCORE")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f\n",
					rec.ID, rec.Asset, rec.Timestamp.Local().Format("2006-01-02 15:04"),
					rec.NeuralSynthesis.NarrativeState, rec.RiskManagement.Permission, rec.FactualScore)
			}
			return w.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return withHistory(func(ctx context.Context, h historyStore) error {
			rec, err := h.Get(ctx, args[0])
			if err != nil {
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
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			prompt := promptui.Prompt{
				Label:     "Delete all stored analyses",
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				fmt.Println("Aborted.")
				return nil
			}
		}
		return withHistory(func(ctx context.Context, h historyStore) error {
			if err := h.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export [id...]",
	Short: "Export analyses as markdown or HTML reports",
	Long:  `Writes one report file per analysis. With no ids every stored analysis is exported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outDir, _ := cmd.Flags().GetString("out")
		f := report.Format(format)
		if f != report.FormatMarkdown && f != report.FormatHTML {
			return fmt.Errorf("invalid format %q: must be md or html", format)
		}

		return withHistory(func(ctx context.Context, h historyStore) error {
			var records []*engine.AnalysisRecord
			if len(args) == 0 {
				all := h.List(ctx)
				for i := range all {
					records = append(records, &all[i])
				}
			} else {
				for _, id := range args {
					rec, err := h.Get(ctx, id)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					records = append(records, rec)
				}
			}
			for _, rec := range records {
				path, err := report.Write(outDir, rec, f)
				if err != nil {
					return err
				}
				fmt.Println(path)
			}
			fmt.Fprintf(os.Stderr, "Exported %d report(s) to %s\n", len(records), outDir)
			return nil
		})
	},
}

// historyStore is the subset of the history store the subcommands use.
type historyStore interface {
	List(ctx context.Context) []engine.AnalysisRecord
	Get(ctx context.Context, id string) (*engine.AnalysisRecord, error)
	Filter(ctx context.Context, pattern string) ([]engine.AnalysisRecord, error)
	Clear(ctx context.Context) error
}

func withHistory(fn func(ctx context.Context, h historyStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeFn, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(context.Background(), store)
}

func init() {
	historyListCmd.Flags().String("asset", "", "glob pattern over asset symbols, e.g. BTC*")
	historyListCmd.Flags().Int("limit", 0, "maximum number of analyses to list")
	historyListCmd.Flags().Bool("json", false, "output as JSON")
	historyShowCmd.Flags().Bool("json", false, "output the raw record as JSON")
	historyClearCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	historyExportCmd.Flags().String("format", "md", "report format: md or html")
	historyExportCmd.Flags().String("out", "reports", "output directory")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyClearCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
