package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ferry/internal/catalog"
	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/transfer"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var courseID string
	var rootFolderID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk the remote catalog and transfer every leaf",
		Long: `Walk the configured course catalog from its root folder and move every
video and document into the upload sink, one item at a time in walk order.

Items already recorded as uploaded in the ledger are skipped, so an
interrupted run can simply be started again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(courseID); v != "" {
				cfg.Catalog.CourseID = v
			}
			if v := strings.TrimSpace(rootFolderID); v != "" {
				cfg.Catalog.RootFolderID = v
			}
			if err := cfg.ValidateCatalog(time.Now()); err != nil {
				return services.Wrap(services.ErrConfiguration, "", "catalog", "invalid catalog settings", err)
			}

			runCtx := cmd.Context()
			source := fmt.Sprintf("course %s folder %s", cfg.Catalog.CourseID, cfg.Catalog.RootFolderID)
			session, err := startSession(runCtx, cfg, "run", source, pipelineOptions{withCatalog: true})
			if err != nil {
				return err
			}

			walker := catalog.NewWalker(session.pipeline.catalog, cfg.Catalog.CourseID, cfg.Catalog.MaxDepth, session.logger)
			items := transfer.FromLeaves(walker.Walk(runCtx, cfg.Catalog.RootFolderID))
			runErr := transfer.RunSequential(runCtx, session.pipeline.orchestrator, items, session.onResult(runCtx))

			session.logger.Info("catalog walk finished",
				logging.Int64("folders", walker.Folders()),
				logging.Int64("folder_failures", walker.Failures()),
			)
			return session.finish(runCtx, cmd.OutOrStdout(), ctx.JSONMode(), runErr)
		},
	}

	cmd.Flags().StringVar(&courseID, "course", "", "Override catalog.course_id")
	cmd.Flags().StringVar(&rootFolderID, "root", "", "Override catalog.root_folder_id")

	return cmd
}
