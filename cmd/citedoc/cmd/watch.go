package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mfenderov/citedoc/internal/watcher"
	"github.com/spf13/cobra"
)

var watchInitialScan bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Upload documents as they appear in a directory",
	Long: `Watch a directory tree and upload new or changed .pdf, .docx and .doc
files for the configured owner. The directory defaults to watch.dir.

Examples:
  citedoc watch ~/Documents/contracts
  citedoc watch --initial-scan`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "Upload documents already in the directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no directory given and watch.dir is not set")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s...\n", dir)

	return watcher.Watch(ctx, watcher.Config{
		Dir:         dir,
		Debounce:    cfg.Watch.Debounce,
		InitialScan: watchInitialScan,
	}, watcher.UploadHandler(a.ingestion, cfg.Owner))
}
