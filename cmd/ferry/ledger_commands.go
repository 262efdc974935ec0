package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ferry/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and edit the completion ledger",
	}

	ledgerCmd.AddCommand(newLedgerStatsCommand(ctx))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearCommand(ctx))

	return ledgerCmd
}

// withLedger opens the configured store for the duration of fn.
func (c *commandContext) withLedger(fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"driver":   store.Driver(),
						"location": store.Location(),
						"total":    stats.Total,
						"uploaded": stats.Uploaded,
						"failed":   stats.Failed,
						"pending":  stats.Pending,
						"split":    stats.Split,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Ledger: %s (%s)\n\n", store.Location(), store.Driver())
				fmt.Fprintln(out, tableSpec{
					headers: []string{"Status", "Records"},
					rows: [][]string{
						{"Uploaded", fmt.Sprint(stats.Uploaded)},
						{"Failed", fmt.Sprint(stats.Failed)},
						{"Pending", fmt.Sprint(stats.Pending)},
						{"Split", fmt.Sprint(stats.Split)},
					},
					aligns: []columnAlignment{alignLeft, alignRight},
					footer: []string{"Total", fmt.Sprint(stats.Total)},
				}.render())
				return nil
			})
		},
	}
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "show [id...]",
		Short: "List ledger records",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ledger.ListOptions{Limit: limit}
			if v := strings.TrimSpace(statusFlag); v != "" {
				status, err := ledger.ParseStatus(v)
				if err != nil {
					return err
				}
				opts.Status = status
			}
			return ctx.withLedger(func(store *ledger.Store) error {
				records, err := loadRecords(cmd.Context(), store, args, opts)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if records == nil {
						records = []ledger.Record{}
					}
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No ledger records found")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						r.ArtifactID,
						r.DisplayName,
						string(r.Status),
						fmt.Sprint(r.PartCount),
						r.UpdatedAt.Local().Format("2006-01-02 15:04"),
						truncate(r.Error, 60),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Status", "Parts", "Updated", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show records with this status (uploaded, failed, pending)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records to show")
	return cmd
}

// loadRecords returns the named records in argument order, or a filtered
// listing when no ids are given.
func loadRecords(ctx context.Context, store *ledger.Store, ids []string, opts ledger.ListOptions) ([]ledger.Record, error) {
	if len(ids) == 0 {
		return store.List(ctx, opts)
	}
	var records []ledger.Record
	for _, id := range ids {
		record, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		if opts.Status != "" && record.Status != opts.Status {
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [id...]",
		Short: "Forget ledger records so the items are transferred again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("give one or more ids, or --all to clear every record")
			}
			if len(args) > 0 && all {
				return errors.New("--all cannot be combined with ids")
			}
			return ctx.withLedger(func(store *ledger.Store) error {
				removed, err := store.Clear(cmd.Context(), args...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ledger records\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear every record")
	return cmd
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
