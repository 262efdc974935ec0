package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/logging"
	"ferry/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and clean per-item staging directories",
	}
	cmd.AddCommand(newStagingListCommand(ctx), newStagingCleanCommand(ctx))
	return cmd
}

type stagingListing struct {
	StagingDir  string            `json:"staging_dir"`
	Directories []staging.DirInfo `json:"directories"`
	TotalBytes  int64             `json:"total_size_bytes"`
}

func (l stagingListing) render(w io.Writer) {
	if len(l.Directories) == 0 {
		fmt.Fprintln(w, "No staging directories found")
		return
	}
	fmt.Fprintf(w, "Staging directory: %s\n\n", l.StagingDir)
	table := tableSpec{
		headers: []string{"Item", "Age", "Size"},
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
		footer:  []string{fmt.Sprintf("%d directories", len(l.Directories)), "", humanize.IBytes(uint64(l.TotalBytes))},
	}
	for _, dir := range l.Directories {
		table.rows = append(table.rows, []string{
			dir.Name,
			formatDuration(time.Since(dir.ModTime)),
			humanize.IBytes(uint64(dir.Size)),
		})
	}
	fmt.Fprintln(w, table.render())
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}
			listing := stagingListing{StagingDir: cfg.Paths.StagingDir, Directories: dirs}
			if listing.Directories == nil {
				listing.Directories = []staging.DirInfo{}
			}
			for _, dir := range dirs {
				listing.TotalBytes += dir.Size
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, listing)
			}
			listing.render(cmd.OutOrStdout())
			return nil
		},
	}
}

type cleanReport struct {
	Scope   string   `json:"scope"`
	Removed int      `json:"removed"`
	Errors  []string `json:"errors"`
}

func newCleanReport(scope string, result staging.CleanResult) cleanReport {
	report := cleanReport{Scope: scope, Removed: len(result.Removed), Errors: []string{}}
	for _, failure := range result.Errors {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", failure.Path, failure.Error))
	}
	return report
}

func (r cleanReport) render(w io.Writer) {
	switch {
	case r.Removed == 0 && len(r.Errors) == 0:
		fmt.Fprintf(w, "No %s directories to clean\n", r.Scope)
	case len(r.Errors) == 0:
		fmt.Fprintf(w, "Removed %d %s directories\n", r.Removed, r.Scope)
	default:
		fmt.Fprintf(w, "Removed %d %s directories, %d errors\n", r.Removed, r.Scope, len(r.Errors))
		for _, line := range r.Errors {
			fmt.Fprintf(w, "  Error: %s\n", line)
		}
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover staging directories",
		Long: `Remove item directories left behind by interrupted runs.

By default only directories older than paths.staging_stale_hours are removed,
which is the same pass every run performs at startup.

Use --all to remove every item directory. This takes the staging lock and
fails while a run is in progress.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()

			var report cleanReport
			if all {
				lock, err := staging.AcquireLock(cfg.LockPath())
				if err != nil {
					return err
				}
				defer func() { _ = lock.Release() }()
				report = newCleanReport("staging", staging.CleanAll(cmd.Context(), cfg.Paths.StagingDir, logger))
			} else {
				report = newCleanReport("stale", staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, cfg.StagingStaleAfter(), logger))
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}
			report.render(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove all staging directories regardless of age")
	return cmd
}

// formatDuration renders an age at the coarsest useful unit.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
