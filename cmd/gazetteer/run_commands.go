package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"gazetteer/internal/archive"
	"gazetteer/internal/archiver"
	"gazetteer/internal/assetstore"
	"gazetteer/internal/extract"
	"gazetteer/internal/preflight"
	"gazetteer/internal/workflow"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	var (
		batchSize  int
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Run one archive pass over pending tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if cmd.Flags().Changed("batch-size") {
				cfg.Workflow.BatchSize = batchSize
			}
			if cmd.Flags().Changed("max-retries") {
				cfg.Workflow.MaxRetries = maxRetries
			}

			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}
			client, err := archiver.New(cfg)
			if err != nil {
				return err
			}
			worker := archive.New(store, client, cfg, logger)

			summary, err := worker.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archive pass: %d claimed, %d archived, %d retried, %d failed\n",
				summary.Claimed, summary.Archived, summary.Retried, summary.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override the number of tasks claimed per pass")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Override the capture retry budget")
	return cmd
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Run one extraction pass over archived snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}
			extractor := extract.New(store, assetstore.New(cfg), cfg, logger)

			summary, err := extractor.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extract pass: %d tasks, %d scanned, %d promoted, %d duplicates, %d uploaded\n",
				summary.Tasks, summary.Scanned, summary.Promoted, summary.Duplicates, summary.Uploaded)
			if summary.MissingSnapshots > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %d snapshot directories missing\n", summary.MissingSnapshots)
			}
			return nil
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		once     bool
		interval int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the archive and extract pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if cmd.Flags().Changed("interval") {
				cfg.Workflow.PollInterval = interval
			}

			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}

			if results := preflight.Failures(preflight.RunAll(cmd.Context(), cfg, store)); len(results) > 0 {
				details := make([]string, 0, len(results))
				for _, r := range results {
					details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
				}
				return fmt.Errorf("preflight checks failed: %s", strings.Join(details, "; "))
			}

			client, err := archiver.New(cfg)
			if err != nil {
				return err
			}
			worker := archive.New(store, client, cfg, logger)
			extractor := extract.New(store, assetstore.New(cfg), cfg, logger)
			runner, err := workflow.New(cfg, worker, extractor, logger)
			if err != nil {
				return err
			}

			if once {
				return runner.RunOnce(cmd.Context())
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := runner.Run(runCtx); err != nil && !isShutdown(err) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	cmd.Flags().IntVar(&interval, "interval", 0, "Override the poll interval in seconds")
	return cmd
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
