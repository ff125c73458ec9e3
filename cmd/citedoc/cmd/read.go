package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mfenderov/citedoc/internal/tui"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read [document-id]",
	Short: "Open a document in the terminal reader",
	Long: `Open a document page by page and ask questions about it. Selecting a
citation jumps to the cited page.

Keys:
  enter         ask the question / open the selected citation
  tab           switch between the question box and the citations
  pgup, pgdown  previous / next page
  +, -          zoom in / out (citations focused)
  esc, ctrl+c   quit`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	program := tea.NewProgram(
		tui.New(tui.Config{
			Session:    a.chat,
			OwnerID:    cfg.Owner,
			DocumentID: args[0],
			Timeout:    cfg.Oracle.Timeout,
		}),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("reader failed: %w", err)
	}
	return nil
}
