package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	searchLimit  int
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the document library",
	Long: `Search uploaded documents by file name, summary and content.
Requires elasticsearch.enabled.

Examples:
  # Basic search
  citedoc search "quarterly revenue"

  # Limit results
  citedoc search "indemnification" --limit 5

  # JSON output for scripting
  citedoc search "warranty" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	library, err := newLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	if library == nil {
		return fmt.Errorf("library search is disabled, set elasticsearch.enabled")
	}

	hits, err := library.Search(ctx, cfg.Owner, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(hits))
	for i, hit := range hits {
		fmt.Printf("%d. %s (score: %.2f)\n", i+1, hit.FileName, hit.Score)
		fmt.Printf("   ID: %s\n", hit.DocumentID)
		if hit.Summary != "" {
			summary := hit.Summary
			if len([]rune(summary)) > 200 {
				summary = string([]rune(summary)[:200]) + "..."
			}
			fmt.Printf("   %s\n", summary)
		}
		fmt.Println()
	}
	return nil
}
