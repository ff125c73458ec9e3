package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mfenderov/citedoc/internal/ingestion"
	"github.com/spf13/cobra"
)

var uploadFormat string

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload documents",
	Long: `Upload PDF or Word documents, then print each document's id and summary.

Examples:
  citedoc upload report.pdf
  citedoc upload *.docx --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadFormat, "format", "text", "Output format: text or json")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var results []*ingestion.Result
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		result, err := a.ingestion.Upload(ctx, ingestion.Upload{
			OwnerID:  cfg.Owner,
			FileName: filepath.Base(path),
			Data:     data,
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
		results = append(results, result)

		if uploadFormat != "json" {
			printUpload(result)
		}
	}

	if uploadFormat == "json" {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(output))
	}
	return nil
}

func printUpload(result *ingestion.Result) {
	doc := result.Document
	fmt.Printf("%s  %s\n", doc.ID, doc.FileName)
	if doc.PageCount > 0 {
		fmt.Printf("  Pages: %d\n", doc.PageCount)
	}
	fmt.Printf("  Duration: %v\n", result.Duration)
	if result.Summary.Truncated {
		fmt.Println("  Note: the document was truncated for summarization")
	}
	fmt.Printf("\n%s\n\n", result.Summary.Text)
}
