package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/spf13/cobra"
)

var askFormat string

var askCmd = &cobra.Command{
	Use:   "ask [document-id] [question]",
	Short: "Ask a question about a document",
	Long: `Ask a question about an uploaded document. The answer is grounded in the
document text and lists the pages and sections it cites.

Examples:
  citedoc ask 3f1c... "What is the termination notice period?"
  citedoc ask 3f1c... "Who signed the agreement?" --format json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askFormat, "format", "text", "Output format: text or json")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args[1:], " ")
	result, err := a.chat.Ask(ctx, cfg.Owner, args[0], question)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	if askFormat == "json" {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	printAnswer(result)
	return nil
}

func printAnswer(result *qa.Result) {
	fmt.Println(result.Answer)
	if result.Truncated {
		fmt.Println("\nNote: the document was too long and only its beginning was read.")
	}
	if !result.HasCitations() {
		return
	}
	fmt.Println("\nCitations:")
	for i, c := range result.Citations {
		fmt.Printf("  %d. %s\n", i+1, c.Text)
		if c.Snippet != "" {
			fmt.Printf("     %s\n", strings.Join(strings.Fields(c.Snippet), " "))
		}
	}
}
