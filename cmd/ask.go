package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/nae/internal/engine"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask questions about a stored analysis",
	Long: `Answers questions using only the selected analysis record. With a question
argument it answers once; without one it starts an interactive session. The most
recent analysis is used unless --id is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("id", "", "analysis id (defaults to the most recent)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	id, _ := cmd.Flags().GetString("id")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var rec *engine.AnalysisRecord
	if id != "" {
		rec, err = p.history.Get(ctx, id)
		if err != nil {
			return err
		}
	} else {
		records := p.history.List(ctx)
		if len(records) == 0 {
			return fmt.Errorf("no analyses stored\nRun `nae analyze <asset>` first")
		}
		rec = &records[0]
	}

	transcript := engine.NewTranscript(rec)

	if len(args) == 1 {
		answer, err := transcript.Exchange(ctx, p.assistant, args[0], rec)
		fmt.Println(answer)
		return err
	}

	fmt.Println(engine.Greeting(rec))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}
		answer, _ := transcript.Exchange(ctx, p.assistant, question, rec)
		fmt.Printf("\n%s\n\n", answer)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
