package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var summaryRefresh bool

var summaryCmd = &cobra.Command{
	Use:   "summary [document-id]",
	Short: "Show a document's summary",
	Long: `Show the executive summary stored at upload time, or generate a new one
with --refresh.

Examples:
  citedoc summary 3f1c...
  citedoc summary 3f1c... --refresh`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().BoolVar(&summaryRefresh, "refresh", false, "Generate a new summary instead of showing the stored one")
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !summaryRefresh {
		doc, err := a.chat.Document(ctx, cfg.Owner, args[0])
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		if doc.Summary != "" {
			fmt.Println(doc.Summary)
			return nil
		}
	}

	summary, err := a.chat.Summarize(ctx, cfg.Owner, args[0])
	if err != nil {
		return fmt.Errorf("failed to summarize document: %w", err)
	}
	fmt.Println(summary.Text)
	if summary.Truncated {
		fmt.Println("\nNote: the document was truncated for summarization.")
	}
	return nil
}
