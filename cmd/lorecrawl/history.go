package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/lorecrawl/internal/config"
	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded crawl runs",
		Long: `History lists earlier crawl runs from the run ledger, newest first.

Examples:
  # Show the last 20 runs
  lorecrawl history

  # Show every run as JSON
  lorecrawl history --json --limit 0`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run ledger")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return config.ErrConflictingReportFormats
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	w := historyWriter(cmd.OutOrStdout(), jsonOut, markdownOut)

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	ledger, err := database.Open(dir, opts)
	if errors.Is(err, database.ErrLedgerNotFound) {
		_, err = w.WriteHistory(nil)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	_, err = w.WriteHistory(runs)
	return err
}

// historyWriter selects the output format.
func historyWriter(out io.Writer, jsonOut, markdownOut bool) report.Writer {
	switch {
	case jsonOut:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOut:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out)
	}
}
