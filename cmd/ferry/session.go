package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/config"
	"ferry/internal/deps"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/metrics"
	"ferry/internal/notifications"
	"ferry/internal/preflight"
	"ferry/internal/services"
	"ferry/internal/staging"
	"ferry/internal/transfer"
)

const notifyTimeout = 15 * time.Second

// runSession owns everything one transfer run holds between start and
// finish: the staging lock, the pipeline, and the notifier.
type runSession struct {
	cfg      *config.Config
	runID    string
	mode     string
	source   string
	logger   *slog.Logger
	lock     *staging.Lock
	pipeline *pipeline
	notifier notifications.Service
	started  time.Time
	before   ledger.Stats
}

// startSession acquires the staging lock, cleans stale leftovers, builds the
// pipeline, and runs preflight. Any error is fatal for the run.
func startSession(ctx context.Context, cfg *config.Config, mode, source string, opts pipelineOptions) (s *runSession, err error) {
	runID := newRunID()
	logger, err := newCommandLogger(cfg, runID)
	if err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, mode)

	lock, err := staging.AcquireLock(cfg.LockPath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = lock.Release()
		}
	}()

	cleaned := staging.CleanStale(ctx, cfg.Paths.StagingDir, cfg.StagingStaleAfter(), logger)
	if len(cleaned.Removed) > 0 {
		logger.Info("removed stale staging directories", logging.Int("count", len(cleaned.Removed)))
	}

	p, err := buildPipeline(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	if failed := preflight.Failed(preflight.RunAll(ctx, cfg, p.sink)); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, r := range failed {
			parts = append(parts, r.Name+": "+r.Detail)
		}
		return nil, services.Wrap(services.ErrConfiguration, "", "preflight", strings.Join(parts, "; "), nil)
	}

	if missing := deps.MissingRequired(preflight.CheckSystemDeps(ctx, cfg, mode == "batch")); len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "dependencies", "missing "+strings.Join(missing, ", "), nil)
	}

	if err := metrics.Serve(ctx, cfg.Metrics.Bind, logger); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "metrics", "listen on "+cfg.Metrics.Bind, err)
	}

	s = &runSession{
		cfg:      cfg,
		runID:    runID,
		mode:     mode,
		source:   source,
		logger:   logger,
		lock:     lock,
		pipeline: p,
		notifier: notifications.NewService(cfg),
		started:  time.Now(),
	}
	s.before = s.ledgerStats(ctx, "before run")
	logger.Info("run starting",
		logging.String("source", source),
		logging.String("sink", p.sink.Name()),
		logging.String("ledger", p.store.Driver()),
		logging.Int64("size_ceiling_bytes", cfg.SizeCeilingBytes()),
	)
	s.notify(ctx, notifications.EventRunStarted, notifications.Payload{"mode": mode, "source": source})
	return s, nil
}

// onResult publishes a notification for failed items.
func (s *runSession) onResult(ctx context.Context) func(transfer.Result) {
	return func(result transfer.Result) {
		if result.Outcome != transfer.OutcomeFailed {
			return
		}
		errText := ""
		if result.Err != nil {
			errText = result.Err.Error()
		}
		s.notify(ctx, notifications.EventItemFailed, notifications.Payload{
			"name":  result.Item.DisplayName,
			"id":    result.Item.ArtifactID,
			"error": errText,
		})
	}
}

// finish logs and prints the summary, publishes the completion notification,
// and releases the lock. It returns runErr, or an error when items failed.
func (s *runSession) finish(ctx context.Context, out io.Writer, jsonMode bool, runErr error) error {
	defer func() {
		_ = s.pipeline.Close()
		_ = s.lock.Release()
	}()

	snap := s.pipeline.orchestrator.Stats().Snapshot()
	elapsed := time.Since(s.started)
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
	after := s.ledgerStats(ctx, "after run")

	if runErr != nil && !interrupted {
		logging.ErrorWithContext(s.logger, "run aborted", "run_aborted",
			logging.Error(runErr),
			logging.ErrorKind(runErr),
			logging.String(logging.FieldErrorHint, "fix the reported problem and start the run again"),
		)
	}
	s.logger.Info("run finished",
		logging.Int64("completed", snap.Completed),
		logging.Int64("skipped", snap.Skipped),
		logging.Int64("failed", snap.Failed),
		logging.Int64("abandoned", snap.Abandoned),
		logging.Int64("split", snap.Split),
		logging.Int64("size_bytes", snap.Bytes),
		logging.Duration("elapsed", elapsed),
		logging.Bool("interrupted", interrupted),
	)
	s.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"completed":        snap.Completed,
		"skipped":          snap.Skipped,
		"failed":           snap.Failed,
		"bytes":            snap.Bytes,
		"duration_seconds": int64(elapsed.Seconds()),
		"interrupted":      interrupted,
	})

	summary := runSummary{
		RunID:       s.runID,
		Mode:        s.mode,
		Source:      s.source,
		Stats:       snap,
		Elapsed:     elapsed.Round(time.Second).String(),
		Interrupted: interrupted,
		Before:      s.before,
		After:       after,
	}
	if jsonMode {
		if err := writeJSONTo(out, summary); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderRunSummary(summary, shouldColorize(out)))
	}

	if runErr != nil {
		return runErr
	}
	if snap.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", snap.Failed, snap.Processed)
	}
	return nil
}

func (s *runSession) ledgerStats(ctx context.Context, when string) ledger.Stats {
	statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	stats, err := s.pipeline.store.Stats(statsCtx)
	if err != nil {
		logging.WarnWithContext(s.logger, "ledger stats unavailable", "ledger_stats_failed",
			logging.String("when", when),
			logging.Error(err),
		)
		return ledger.Stats{}
	}
	s.logger.Info("ledger stats "+when,
		logging.Int("total", stats.Total),
		logging.Int("uploaded", stats.Uploaded),
		logging.Int("failed", stats.Failed),
		logging.Int("pending", stats.Pending),
		logging.Int("split", stats.Split),
	)
	return stats
}

// notify never blocks the run on the notification endpoint and survives
// cancellation so the interrupted summary still goes out.
func (s *runSession) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Publish(notifyCtx, event, payload); err != nil {
		logging.WarnWithContext(s.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

type runSummary struct {
	RunID       string                 `json:"run_id"`
	Mode        string                 `json:"mode"`
	Source      string                 `json:"source"`
	Stats       transfer.StatsSnapshot `json:"stats"`
	Elapsed     string                 `json:"elapsed"`
	Interrupted bool                   `json:"interrupted"`
	Before      ledger.Stats           `json:"ledger_before"`
	After       ledger.Stats           `json:"ledger_after"`
}

func renderRunSummary(s runSummary, colorize bool) string {
	var b strings.Builder
	title := "Run summary"
	if s.Interrupted {
		title = "Run summary (interrupted)"
	}
	for _, line := range renderSectionHeader(title, colorize) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	rows := [][]string{
		{"Completed", fmt.Sprint(s.Stats.Completed), fmt.Sprint(s.After.Uploaded)},
		{"Skipped", fmt.Sprint(s.Stats.Skipped), ""},
		{"Failed", fmt.Sprint(s.Stats.Failed), fmt.Sprint(s.After.Failed)},
		{"Abandoned", fmt.Sprint(s.Stats.Abandoned), fmt.Sprint(s.After.Pending)},
		{"Split", fmt.Sprint(s.Stats.Split), fmt.Sprint(s.After.Split)},
	}
	b.WriteString(renderTable(
		[]string{"Outcome", "This run", "Ledger"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Transferred %s in %s (run %s)\n", humanize.IBytes(uint64(s.Stats.Bytes)), s.Elapsed, s.RunID)
	if s.Stats.Inconsistent > 0 {
		b.WriteString(renderStatusLine("Ledger", statusWarn,
			fmt.Sprintf("%d uploaded items could not be recorded", s.Stats.Inconsistent), colorize))
		b.WriteByte('\n')
	}
	return b.String()
}
