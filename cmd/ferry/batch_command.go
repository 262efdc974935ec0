package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"ferry/internal/batch"
	"ferry/internal/logging"
	"ferry/internal/transfer"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <source>",
		Short: "Transfer a JSON list of items",
		Long: `Load a JSON array of {"id", "name", "link"} entries and transfer every
entry with a bounded number of concurrent workers.

The source may be a local file, an HTTP(S) URL, or a Google Drive share link.
Drive links are converted to their direct download form, including the
confirmation step Drive shows for large files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			limit := cfg.Transfer.Concurrency
			if cmd.Flags().Changed("concurrency") {
				limit = concurrency
			}

			runCtx := cmd.Context()
			source := args[0]
			session, err := startSession(runCtx, cfg, "batch", source, pipelineOptions{})
			if err != nil {
				return err
			}

			loader := batch.NewLoader(http.DefaultClient, cfg.DownloadTimeout(), session.logger)
			entries, err := loader.Load(runCtx, source)
			if err != nil {
				return session.finish(runCtx, cmd.OutOrStdout(), ctx.JSONMode(), err)
			}
			session.logger.Info("batch starting",
				logging.Int("entries", len(entries)),
				logging.Int("concurrency", limit),
			)

			items := batch.WorkItems(entries)
			runErr := transfer.RunConcurrent(runCtx, session.pipeline.orchestrator, items, limit, session.onResult(runCtx))
			return session.finish(runCtx, cmd.OutOrStdout(), ctx.JSONMode(), runErr)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Items transferred in parallel (default transfer.concurrency)")

	return cmd
}
