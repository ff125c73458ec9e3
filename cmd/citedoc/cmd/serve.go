package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mfenderov/citedoc/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for uploading documents and asking questions.

The caller is identified by the header configured in server.user_header
(X-User-ID by default); requests without it are rejected.

Example:
  citedoc serve
  CITEDOC_SERVER_ADDR=:9090 citedoc serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		UserHeader:   cfg.Server.UserHeader,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, a.ingestion, a.chat, a.searcher())

	slog.Info("http server starting", "addr", cfg.Server.Addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", cfg.Server.Addr)

	return srv.ListenAndServe(ctx)
}
