package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"ferry/internal/deps"
	"ferry/internal/notifications"
	"ferry/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var notify bool
	var batchMode bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, ledger, sink, catalog, and external tools",
		Long: `Run the same checks a transfer run performs at startup and report each one.

The catalog check lists the configured root folder once; it is advisory
because batch runs do not need the catalog. Use --notify to send a test
notification to the configured ntfy topic.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			var results []preflight.Result
			dest, err := newSink(runCtx, cfg, http.DefaultClient)
			if err != nil {
				results = append(preflight.RunAll(runCtx, cfg, nil), preflight.Result{Name: "Sink", Detail: err.Error()})
			} else {
				results = preflight.RunAll(runCtx, cfg, dest)
			}
			catalogResult := preflight.CheckCatalog(runCtx, cfg)
			statuses := preflight.CheckSystemDeps(runCtx, cfg, batchMode)

			var notifyErr error
			if notify {
				notifyCtx, cancel := context.WithTimeout(runCtx, 15*time.Second)
				notifyErr = notifications.NewService(cfg).Publish(notifyCtx, notifications.EventTest, nil)
				cancel()
			}

			failed := len(preflight.Failed(results)) + len(deps.MissingRequired(statuses))

			if ctx.JSONMode() {
				payload := map[string]any{
					"checks":       results,
					"catalog":      catalogResult,
					"dependencies": statuses,
					"failed":       failed,
				}
				if notify {
					payload["notification_sent"] = notifyErr == nil
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := renderSectionHeader("Preflight", colorize)
				for _, r := range results {
					lines = append(lines, renderCheck(r, false, colorize))
				}
				lines = append(lines, renderCheck(catalogResult, true, colorize))
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
				for _, s := range statuses {
					lines = append(lines, renderDependency(s, colorize))
				}
				if notify {
					lines = append(lines, "")
					lines = append(lines, renderSectionHeader("Notifications", colorize)...)
					switch {
					case notifyErr != nil:
						lines = append(lines, renderStatusLine("ntfy", statusError, notifyErr.Error(), colorize))
					case cfg.Notifications.NtfyTopic == "":
						lines = append(lines, renderStatusLine("ntfy", statusInfo, "no topic configured", colorize))
					default:
						lines = append(lines, renderStatusLine("ntfy", statusOK, "test notification sent", colorize))
					}
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return notifyErr
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "Send a test notification")
	cmd.Flags().BoolVar(&batchMode, "batch", false, "Check only what batch runs need (ffmpeg optional)")
	return cmd
}
