package rendition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ferry/internal/logging"
)

const maxManifestBytes = 2 << 20

// Resolver fetches a manifest and selects a stream URL from it.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver constructs a Resolver. A nil client uses http.DefaultClient.
func NewResolver(client *http.Client, timeout time.Duration, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		client:  client,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "rendition"),
	}
}

// Resolve returns the stream URL to hand to the remux tool. ok is false when
// the manifest could not be fetched or parsed, in which case the manifest URL
// itself is returned and treated as the stream.
func (r *Resolver) Resolve(ctx context.Context, manifestURL string, pref Quality) (string, Variant, bool) {
	logger := logging.WithContext(ctx, r.logger)

	body, finalURL, err := r.fetch(ctx, manifestURL)
	if err != nil {
		logger.Warn("manifest fetch failed; using manifest url as stream",
			logging.Error(err),
			logging.String(logging.FieldEventType, "manifest_fetch_failed"),
		)
		return manifestURL, Variant{}, false
	}

	variant, err := SelectVariant(body, finalURL, pref)
	if err != nil {
		logger.Info("manifest lists no variants; using manifest url as stream",
			logging.String("quality", string(pref)),
		)
		return manifestURL, Variant{}, false
	}

	logger.Info("rendition selected",
		logging.String("quality", string(pref)),
		logging.String("rendition", variant.Label),
		logging.Int64("bandwidth", variant.Bandwidth),
	)
	return variant.URL, variant, true
}

func (r *Resolver) fetch(ctx context.Context, manifestURL string) (string, string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build manifest request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetch manifest: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return "", "", fmt.Errorf("read manifest: %w", err)
	}
	finalURL := manifestURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(data), finalURL, nil
}
