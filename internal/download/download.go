// Package download streams remote bytes into staged files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"ferry/internal/fileutil"
	"ferry/internal/services"
)

// Client performs plain HTTP GET downloads. A failed download is retried
// only from scratch by the caller; no range resume is attempted.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

// NewClient constructs a download client. A zero timeout disables the
// per-download deadline.
func NewClient(httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, timeout: timeout, userAgent: "ferry/1"}
}

// Fetch downloads rawURL into dest and returns the byte count. Partial files
// are removed on any failure. Progress receives (written, total) where total
// is -1 when the server does not announce a length.
func (c *Client) Fetch(ctx context.Context, rawURL, dest string, progress func(written, total int64)) (int64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrDownload, "downloading", "build request", "", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrDownload, "downloading", "request", redact(rawURL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, services.Wrap(services.ErrDownload, "downloading", "request",
			fmt.Sprintf("%s: unexpected status %d", redact(rawURL), resp.StatusCode), nil)
	}

	written, err := writeBody(resp.Body, dest, resp.ContentLength, progress)
	if err != nil {
		_ = os.Remove(dest)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Join(err, ctx.Err())
		}
		return written, services.Wrap(services.ErrDownload, "downloading", "write", filepath.Base(dest), err)
	}
	return written, nil
}

func writeBody(body io.Reader, dest string, total int64, progress func(written, total int64)) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	if total <= 0 {
		total = -1
	}
	var sink io.Writer = out
	if progress != nil {
		sink = fileutil.NewProgressWriter(out, func(n int64) { progress(n, total) })
	}
	buf := make([]byte, fileutil.CopyBufferSize)
	written, err := io.CopyBuffer(sink, body, buf)
	if err == nil && total > 0 && written != total {
		err = fmt.Errorf("short body: got %d of %d bytes", written, total)
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return written, err
}

// Extension returns the lowercase file extension of the URL path, or
// fallback when the path has none.
func Extension(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, " %") {
		return fallback
	}
	return ext
}

// redact drops the query string, which often carries signatures.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
