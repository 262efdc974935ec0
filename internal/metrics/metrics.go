// Package metrics provides Prometheus metrics for ferry runs.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ferry/internal/logging"
)

var (
	// Item outcomes
	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_items_total",
			Help: "Work items finished, by outcome",
		},
		[]string{"outcome"},
	)

	itemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ferry_item_duration_seconds",
			Help:    "Wall time spent on one work item",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"outcome"},
	)

	itemsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ferry_items_in_flight",
			Help: "Work items currently being processed",
		},
	)

	// Byte transfer
	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_bytes_downloaded_total",
			Help: "Bytes staged locally by downloads and remuxes",
		},
	)

	bytesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_bytes_uploaded_total",
			Help: "Bytes accepted by the upload sink",
		},
		[]string{"sink"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_part_uploads_total",
			Help: "Part uploads, by sink and status",
		},
		[]string{"sink", "status"},
	)

	uploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ferry_part_upload_duration_seconds",
			Help:    "Part upload duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		},
		[]string{"sink"},
	)

	// Pipeline events
	splitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_artifacts_split_total",
			Help: "Artifacts partitioned because they exceeded the size ceiling",
		},
	)

	catalogFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_catalog_folder_failures_total",
			Help: "Catalog folders skipped by reason (fetch, depth)",
		},
		[]string{"reason"},
	)

	ledgerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_ledger_errors_total",
			Help: "Completion ledger operations that failed",
		},
		[]string{"operation"},
	)

	renditionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferry_rendition_fallbacks_total",
			Help: "Videos remuxed from the manifest url because no variant was selected",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// ItemStarted marks an item as in flight. Call the returned func when it ends.
func ItemStarted() func() {
	itemsInFlight.Inc()
	return func() { itemsInFlight.Dec() }
}

// RecordItem records a finished item.
func RecordItem(outcome string, duration time.Duration) {
	itemsTotal.WithLabelValues(outcome).Inc()
	itemDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordDownload records staged bytes.
func RecordDownload(bytes int64) {
	if bytes > 0 {
		bytesDownloaded.Add(float64(bytes))
	}
}

// RecordUpload records one part upload.
func RecordUpload(sink string, bytes int64, duration time.Duration, success bool) {
	uploadsTotal.WithLabelValues(sink, status(success)).Inc()
	uploadDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if success && bytes > 0 {
		bytesUploaded.WithLabelValues(sink).Add(float64(bytes))
	}
}

// RecordSplit records an artifact that was chunked.
func RecordSplit() { splitsTotal.Inc() }

// RecordCatalogFailure records a catalog folder skipped during a walk.
func RecordCatalogFailure(reason string) { catalogFailures.WithLabelValues(reason).Inc() }

// RecordLedgerError records a failed ledger operation.
func RecordLedgerError(operation string) { ledgerErrors.WithLabelValues(operation).Inc() }

// RecordRenditionFallback records a manifest that yielded no selectable variant.
func RecordRenditionFallback() { renditionFallbacks.Inc() }

// Serve exposes /metrics on bind until ctx is cancelled. An empty bind is a
// no-op.
func Serve(ctx context.Context, bind string, logger *slog.Logger) error {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "metrics")
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("metrics endpoint listening", logging.String("bind", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_serve_failed", logging.Error(err))
		}
	}()
	return nil
}
