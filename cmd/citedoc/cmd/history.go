package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history [document-id]",
	Short: "Show the questions asked about a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyFormat, "format", "text", "Output format: text or json")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	turns, err := a.chat.History(ctx, cfg.Owner, args[0])
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if historyFormat == "json" {
		output, err := json.MarshalIndent(turns, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal history: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(turns) == 0 {
		fmt.Println("No questions asked yet.")
		return nil
	}
	for _, turn := range turns {
		fmt.Printf("[%s] Q: %s\n", turn.CreatedAt.Format("2006-01-02 15:04"), turn.Question)
		fmt.Printf("A: %s\n", turn.Answer)
		for _, c := range turn.Citations {
			fmt.Printf("   - %s\n", c.Text)
		}
		fmt.Println()
	}
	return nil
}
