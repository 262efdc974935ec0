package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"ferry/internal/catalog"
	"ferry/internal/chunker"
	"ferry/internal/config"
	"ferry/internal/download"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/rendition"
	"ferry/internal/services"
	"ferry/internal/services/ffmpeg"
	"ferry/internal/sink"
	"ferry/internal/sink/directory"
	"ferry/internal/sink/s3"
	"ferry/internal/sink/telegram"
	"ferry/internal/staging"
	"ferry/internal/transfer"
)

func newRunID() string {
	return uuid.NewString()
}

// newSink builds the configured upload destination.
func newSink(ctx context.Context, cfg *config.Config, httpClient *http.Client) (sink.Sink, error) {
	var (
		dest sink.Sink
		err  error
	)
	switch cfg.Sink.Kind {
	case config.SinkTelegram:
		var s *telegram.Sink
		s, err = telegram.New(cfg.Sink.Telegram, cfg.UploadTimeout(), httpClient)
		dest = s
	case config.SinkS3:
		var s *s3.Sink
		s, err = s3.New(ctx, cfg.Sink.S3, cfg.UploadTimeout())
		dest = s
	case config.SinkDirectory:
		var s *directory.Sink
		s, err = directory.New(cfg.Sink.Directory.Path)
		dest = s
	default:
		err = fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "sink", "init "+cfg.Sink.Kind+" sink", err)
	}
	return dest, nil
}

// pipeline bundles the collaborators of one transfer run.
type pipeline struct {
	orchestrator *transfer.Orchestrator
	store        *ledger.Store
	sink         sink.Sink
	catalog      *catalog.Client
}

func (p *pipeline) Close() error {
	if p == nil || p.store == nil {
		return nil
	}
	return p.store.Close()
}

type pipelineOptions struct {
	// withCatalog wires the catalog client for signed stream URLs. Batch runs
	// only see direct links and leave it off.
	withCatalog bool
	httpClient  *http.Client
}

func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts pipelineOptions) (*pipeline, error) {
	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	quality, err := rendition.ParseQuality(cfg.Rendition.Quality)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "rendition", "invalid quality", err)
	}
	layout, err := chunker.ParseLayout(cfg.Transfer.PartLayout)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "chunker", "invalid part layout", err)
	}

	dest, err := newSink(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}
	area, err := staging.NewArea(cfg.Paths.StagingDir)
	if err != nil {
		return nil, err
	}
	remuxer, err := ffmpeg.New(cfg.RemuxBinary(), cfg.RemuxTimeout())
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "remux", "invalid remux binary", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, err
	}

	deps := transfer.Deps{
		Ledger:     store,
		Staging:    area,
		Sink:       dest,
		Downloader: download.NewClient(httpClient, cfg.DownloadTimeout()),
		Remuxer:    remuxer,
		Renditions: rendition.NewResolver(httpClient, cfg.ManifestTimeout(), logger),
	}
	var catalogClient *catalog.Client
	if opts.withCatalog {
		catalogClient, err = catalog.NewClient(catalog.OptionsFromConfig(cfg))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Streams = catalogClient
	}

	orch, err := transfer.New(deps, transfer.Options{
		SizeCeiling:   cfg.SizeCeilingBytes(),
		Layout:        layout,
		Quality:       quality,
		UploadTimeout: cfg.UploadTimeout(),
		Throttle:      transfer.NewThrottle(cfg.UploadDelay()),
		Logger:        logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &pipeline{orchestrator: orch, store: store, sink: dest, catalog: catalogClient}, nil
}

func newCommandLogger(cfg *config.Config, runID string) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}
