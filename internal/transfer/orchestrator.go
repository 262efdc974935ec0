package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ferry/internal/catalog"
	"ferry/internal/chunker"
	"ferry/internal/download"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/metrics"
	"ferry/internal/rendition"
	"ferry/internal/services"
	"ferry/internal/services/ffmpeg"
	"ferry/internal/sink"
	"ferry/internal/staging"
)

const (
	defaultLedgerTimeout = 10 * time.Second
	maxErrorText         = 500
)

// StreamResolver exchanges a video content reference for a manifest URL.
type StreamResolver interface {
	SignedStreamURL(ctx context.Context, contentHashID string) (string, error)
}

// RenditionResolver picks the stream to remux from a manifest URL.
type RenditionResolver interface {
	Resolve(ctx context.Context, manifestURL string, pref rendition.Quality) (string, rendition.Variant, bool)
}

// Downloader fetches a URL into a local file.
type Downloader interface {
	Fetch(ctx context.Context, rawURL, dest string, progress func(written, total int64)) (int64, error)
}

// Deps are the collaborators an Orchestrator drives. Streams and Renditions
// may be nil when only direct URLs are processed.
type Deps struct {
	Ledger     ledger.Ledger
	Staging    *staging.Area
	Sink       sink.Sink
	Downloader Downloader
	Remuxer    ffmpeg.Remuxer
	Streams    StreamResolver
	Renditions RenditionResolver
}

// Options tune the pipeline.
type Options struct {
	SizeCeiling   int64
	Layout        chunker.Layout
	Quality       rendition.Quality
	UploadTimeout time.Duration
	LedgerTimeout time.Duration
	Throttle      *Throttle
	Events        EventSink
	Logger        *slog.Logger
}

// Orchestrator processes work items one at a time per call; it is safe to
// call Process from several goroutines.
type Orchestrator struct {
	deps  Deps
	opts  Options
	stats Stats

	logger *slog.Logger
	now    func() time.Time
}

// New validates deps and builds an orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("transfer: ledger is required")
	case deps.Staging == nil:
		return nil, errors.New("transfer: staging area is required")
	case deps.Sink == nil:
		return nil, errors.New("transfer: sink is required")
	case deps.Downloader == nil:
		return nil, errors.New("transfer: downloader is required")
	case opts.SizeCeiling <= 0:
		return nil, services.Wrap(services.ErrConfiguration, "", "transfer", "size ceiling must be positive", nil)
	}
	if opts.Layout == "" {
		opts.Layout = chunker.LayoutBalanced
	}
	if opts.Quality == "" {
		opts.Quality = rendition.Quality480p
	}
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = defaultLedgerTimeout
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "transfer"),
		now:    time.Now,
	}, nil
}

// Stats returns the run counters.
func (o *Orchestrator) Stats() *Stats { return &o.stats }

// itemRun carries the per-item state shared by the pipeline steps.
type itemRun struct {
	item    WorkItem
	ctx     context.Context
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	started time.Time
}

// Process drives item to a terminal outcome. It never returns an error:
// failures are reported in the Result and recorded in the ledger, except when
// the run is cancelled, in which case nothing is recorded and the item stays
// pending for the next run.
func (o *Orchestrator) Process(ctx context.Context, item WorkItem) Result {
	ctx = services.WithArtifactID(ctx, item.ArtifactID)
	run := &itemRun{
		item:    item,
		ctx:     ctx,
		sampler: logging.NewProgressSampler(10),
		started: o.now(),
	}
	run.logger = logging.WithContext(ctx, o.logger).With(logging.String("display_name", item.DisplayName))
	done := metrics.ItemStarted()
	defer done()

	result := o.process(run)
	result.Item = item
	result.Elapsed = o.now().Sub(run.started)
	o.stats.Record(result)
	metrics.RecordItem(string(result.Outcome), result.Elapsed)
	o.emit(Event{Kind: EventFinished, ArtifactID: item.ArtifactID, Stage: finishedStage(result.Outcome), Outcome: result.Outcome, Err: result.Err})
	o.logResult(run, result)
	return result
}

func (o *Orchestrator) process(run *itemRun) Result {
	item := run.item
	if existing, err := o.deps.Ledger.Get(run.ctx, item.ArtifactID); err != nil {
		if run.ctx.Err() != nil {
			return Result{Outcome: OutcomeAbandoned, Err: run.ctx.Err()}
		}
		metrics.RecordLedgerError("get")
		logging.WarnWithContext(run.logger, "ledger lookup failed; processing item anyway", "ledger_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, "ledger"),
			logging.String(logging.FieldErrorHint, "check the ledger database"),
			logging.String(logging.FieldImpact, "item may be uploaded again"),
		)
	} else if existing != nil && existing.Status == ledger.StatusUploaded {
		return Result{Outcome: OutcomeSkipped, Parts: existing.PartCount, RemoteRefs: existing.RemoteRefs}
	}

	if err := run.ctx.Err(); err != nil {
		return Result{Outcome: OutcomeAbandoned, Err: err}
	}

	dir, err := o.deps.Staging.Prepare(item.ArtifactID)
	if err != nil {
		return o.fail(run, services.Wrap(services.ErrDownload, StageDownloading, "prepare staging", "", err))
	}
	defer func() {
		if err := o.deps.Staging.Release(item.ArtifactID); err != nil {
			logging.WarnWithContext(run.logger, "failed to remove staged files", "staging_cleanup_failed",
				logging.String("item_dir", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the next stale cleanup"),
			)
		}
	}()

	path, size, err := o.stage(run, dir)
	if err != nil {
		return o.failOrAbandon(run, err)
	}
	metrics.RecordDownload(size)

	parts, err := o.split(run, path, size)
	if err != nil {
		return o.failOrAbandon(run, err)
	}

	refs, err := o.upload(run, parts, size)
	if err != nil {
		return o.failOrAbandon(run, err)
	}

	result := Result{Outcome: OutcomeCompleted, Parts: len(parts), RemoteRefs: refs, Bytes: size}
	record := ledger.Record{
		ArtifactID:  item.ArtifactID,
		DisplayName: item.DisplayName,
		Status:      ledger.StatusUploaded,
		PartCount:   len(parts),
		RemoteRefs:  refs,
	}
	if err := o.putRecord(run.ctx, record); err != nil {
		result.Inconsistent = true
		metrics.RecordLedgerError("put")
		logging.WarnWithContext(run.logger, "uploaded but ledger write failed", "ledger_inconsistent",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, "ledger"),
			logging.String(logging.FieldErrorHint, "check the ledger database"),
			logging.String(logging.FieldImpact, "item may be uploaded again on the next run"),
			logging.Alert("duplicate_upload_risk"),
		)
	}
	return result
}

// stage materializes the artifact in dir and returns its path and size.
func (o *Orchestrator) stage(run *itemRun, dir string) (string, int64, error) {
	item := run.item

	switch {
	case item.Kind == catalog.KindVideo && (!item.isURL() || item.isManifest()):
		manifestURL := item.SourceRef
		if !item.isURL() {
			if o.deps.Streams == nil {
				return "", 0, services.Wrap(services.ErrConfiguration, StageSelecting, "signed url", "no catalog client configured", nil)
			}
			o.setStage(run, StageSelecting)
			signed, err := o.deps.Streams.SignedStreamURL(run.ctx, item.SourceRef)
			if err != nil {
				return "", 0, err
			}
			manifestURL = signed
		}
		streamURL := o.selectStream(run, manifestURL)
		if o.deps.Remuxer == nil {
			return "", 0, services.Wrap(services.ErrConfiguration, StageDownloading, "remux", "no remux tool configured", nil)
		}
		o.setStage(run, StageDownloading)
		dest := filepath.Join(dir, item.StagedFileName(".mp4"))
		err := o.deps.Remuxer.Remux(run.ctx, streamURL, dest, func(update ffmpeg.ProgressUpdate) {
			o.progress(run, StageDownloading, update.Bytes, -1)
		})
		if err != nil {
			return "", 0, err
		}
		return statStaged(dest)

	case item.isURL():
		o.setStage(run, StageDownloading)
		fallbackExt := ".pdf"
		if item.Kind == catalog.KindVideo {
			fallbackExt = ".mp4"
		}
		dest := filepath.Join(dir, item.StagedFileName(download.Extension(item.SourceRef, fallbackExt)))
		if _, err := o.deps.Downloader.Fetch(run.ctx, item.SourceRef, dest, func(written, total int64) {
			o.progress(run, StageDownloading, written, total)
		}); err != nil {
			return "", 0, err
		}
		return statStaged(dest)

	default:
		return "", 0, services.Wrap(services.ErrDownload, StageDownloading, "resolve source",
			fmt.Sprintf("unsupported %s source reference", item.Kind), nil)
	}
}

// selectStream never fails: without a usable variant the manifest URL is
// remuxed directly.
func (o *Orchestrator) selectStream(run *itemRun, manifestURL string) string {
	if o.deps.Renditions == nil {
		return manifestURL
	}
	o.setStage(run, StageSelecting)
	streamURL, variant, ok := o.deps.Renditions.Resolve(run.ctx, manifestURL, o.opts.Quality)
	if !ok {
		metrics.RecordRenditionFallback()
		return manifestURL
	}
	run.logger.Debug("rendition chosen",
		logging.String("rendition", variant.Label),
		logging.Int("height", variant.Height),
		logging.Int64("bandwidth", variant.Bandwidth),
	)
	return streamURL
}

func statStaged(path string) (string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, services.Wrap(services.ErrDownload, StageDownloading, "stat staged file", "", err)
	}
	return path, info.Size(), nil
}

func (o *Orchestrator) split(run *itemRun, path string, size int64) ([]chunker.Part, error) {
	if size <= o.opts.SizeCeiling {
		return []chunker.Part{{Index: 1, Total: 1, Path: path, SizeBytes: size}}, nil
	}
	o.setStage(run, StageChunking)
	parts, err := chunker.Split(path, o.opts.SizeCeiling,
		chunker.WithLayout(o.opts.Layout),
		chunker.WithProgress(func(written int64) {
			o.progress(run, StageChunking, written, size)
		}),
	)
	if err != nil {
		if cleanupErr := chunker.Remove(parts); cleanupErr != nil {
			run.logger.Debug("partial part cleanup failed", logging.Error(cleanupErr))
		}
		return nil, services.Wrap(services.ErrSplit, StageChunking, "split", filepath.Base(path), err)
	}
	metrics.RecordSplit()
	run.logger.Info("artifact split",
		logging.Int("parts", len(parts)),
		logging.Int64("size_bytes", size),
		logging.Int64("ceiling", o.opts.SizeCeiling),
	)
	return parts, nil
}

// upload sends parts in index order. Any failure fails the whole item.
func (o *Orchestrator) upload(run *itemRun, parts []chunker.Part, size int64) ([]string, error) {
	item := run.item
	o.setStage(run, StageUploading)
	refs := make([]string, 0, len(parts))
	var uploaded int64
	for _, part := range parts {
		if err := o.opts.Throttle.Wait(run.ctx); err != nil {
			return nil, err
		}

		base := uploaded
		req := sink.Request{
			Path:       part.Path,
			Caption:    sink.Caption(item.DisplayName, item.FolderPath, part.Index, part.Total, part.SizeBytes),
			Streamable: item.Kind == catalog.KindVideo,
			FolderPath: item.FolderPath,
			Progress: func(written int64) {
				o.progress(run, StageUploading, base+written, size)
			},
		}

		ctx := run.ctx
		cancel := context.CancelFunc(func() {})
		if o.opts.UploadTimeout > 0 {
			ctx, cancel = context.WithTimeout(run.ctx, o.opts.UploadTimeout)
		}
		start := o.now()
		ref, err := o.deps.Sink.Upload(ctx, req)
		cancel()
		metrics.RecordUpload(o.deps.Sink.Name(), part.SizeBytes, o.now().Sub(start), err == nil)
		if err != nil {
			if delay, ok := sink.RetryAfter(err); ok {
				o.opts.Throttle.Backoff(delay)
			}
			return nil, services.Wrap(services.ErrUpload, StageUploading, "upload part",
				fmt.Sprintf("part %d/%d", part.Index, part.Total), err)
		}

		uploaded += part.SizeBytes
		refs = append(refs, string(ref))
		o.emit(Event{
			Kind:       EventPartUploaded,
			ArtifactID: item.ArtifactID,
			Stage:      StageUploading,
			Part:       part.Index,
			Total:      part.Total,
			Bytes:      uploaded,
			TotalBytes: size,
		})
		run.logger.Info("part uploaded",
			logging.String("part", fmt.Sprintf("%d/%d", part.Index, part.Total)),
			logging.Int64("size_bytes", part.SizeBytes),
			logging.String("remote_ref", string(ref)),
		)
	}
	return refs, nil
}

// failOrAbandon records a failure unless the run itself was cancelled.
func (o *Orchestrator) failOrAbandon(run *itemRun, err error) Result {
	if run.ctx.Err() != nil {
		return Result{Outcome: OutcomeAbandoned, Err: run.ctx.Err()}
	}
	return o.fail(run, err)
}

func (o *Orchestrator) fail(run *itemRun, err error) Result {
	record := ledger.Record{
		ArtifactID:  run.item.ArtifactID,
		DisplayName: run.item.DisplayName,
		Status:      ledger.StatusFailed,
		Error:       failureText(err),
	}
	if putErr := o.putRecord(run.ctx, record); putErr != nil {
		metrics.RecordLedgerError("put")
		logging.WarnWithContext(run.logger, "failed to record item failure", "ledger_write_failed",
			logging.Error(putErr),
			logging.String(logging.FieldErrorKind, "ledger"),
			logging.String(logging.FieldImpact, "failure not persisted; item retried next run"),
		)
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}

// putRecord writes terminal state on a context detached from run
// cancellation so a finished item is recorded even during shutdown.
func (o *Orchestrator) putRecord(ctx context.Context, record ledger.Record) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.LedgerTimeout)
	defer cancel()
	if err := o.deps.Ledger.Put(ctx, record); err != nil {
		return services.Wrap(services.ErrLedger, "", "put", record.ArtifactID, err)
	}
	return nil
}

func failureText(err error) string {
	if err == nil {
		return ""
	}
	text := services.Kind(err) + ": " + err.Error()
	if len(text) > maxErrorText {
		text = text[:maxErrorText]
	}
	return text
}

func (o *Orchestrator) setStage(run *itemRun, stage string) {
	run.ctx = services.WithStage(run.ctx, stage)
	o.emit(Event{Kind: EventStage, ArtifactID: run.item.ArtifactID, Stage: stage})
	run.logger.Debug("stage started", logging.String(logging.FieldStage, stage))
}

func (o *Orchestrator) progress(run *itemRun, stage string, done, total int64) {
	if total <= 0 {
		total = -1
	}
	o.emit(Event{Kind: EventProgress, ArtifactID: run.item.ArtifactID, Stage: stage, Bytes: done, TotalBytes: total})
	if percent, ok := run.sampler.ShouldLogBytes(done, total, stage); ok {
		attrs := []logging.Attr{
			logging.String(logging.FieldStage, stage),
			logging.Int64("size_bytes", done),
		}
		if percent >= 0 {
			attrs = append(attrs, logging.Float64(logging.FieldProgressPercent, percent))
		}
		run.logger.Debug("transfer progress", logging.Args(attrs...)...)
	}
}

func (o *Orchestrator) emit(ev Event) {
	if o.opts.Events != nil {
		o.opts.Events(ev)
	}
}

func (o *Orchestrator) logResult(run *itemRun, result Result) {
	attrs := []logging.Attr{
		logging.String("outcome", string(result.Outcome)),
		logging.Duration("elapsed", result.Elapsed),
	}
	switch result.Outcome {
	case OutcomeCompleted:
		attrs = append(attrs, logging.Int("parts", result.Parts), logging.Int64("size_bytes", result.Bytes))
		run.logger.Info("item completed", logging.Args(attrs...)...)
	case OutcomeSkipped:
		run.logger.Info("item already uploaded; skipped", logging.Args(attrs...)...)
	case OutcomeAbandoned:
		run.logger.Info("item abandoned by cancellation; left pending", logging.Args(attrs...)...)
	case OutcomeFailed:
		attrs = append(attrs,
			logging.Error(result.Err),
			logging.ErrorKind(result.Err),
			logging.String(logging.FieldErrorHint, hintFor(result.Err)),
			logging.String(logging.FieldImpact, "item marked failed; run continues"),
		)
		logging.WarnWithContext(run.logger, "item failed", "item_failed", attrs...)
	}
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "fetch":
		return "check the catalog access token and content id"
	case "download":
		return "check the source url and network; rerun retries from scratch"
	case "transcode":
		return "check that ffmpeg can read the stream"
	case "split":
		return "check free space in the staging directory"
	case "upload":
		return "check sink credentials and rate limits"
	case "timeout":
		return "raise the relevant timeout in the transfer or remux config"
	default:
		return "check logs for details"
	}
}

func finishedStage(outcome Outcome) string {
	switch outcome {
	case OutcomeCompleted, OutcomeSkipped:
		return StageCompleted
	case OutcomeFailed:
		return StageFailed
	default:
		return StagePending
	}
}
