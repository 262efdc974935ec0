package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"ferry/internal/logging"
	"ferry/internal/services"
)

const maxListBytes = 32 << 20

// Loader reads batch lists from files or over HTTP.
type Loader struct {
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewLoader builds a loader. A zero timeout leaves remote loads unbounded.
func NewLoader(httpClient *http.Client, timeout time.Duration, logger *slog.Logger) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Loader{http: httpClient, timeout: timeout, logger: logging.NewComponentLogger(logger, "batch")}
}

// Load reads and decodes the list at source, which is a local path or an
// http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) ([]Entry, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "load batch", "no batch source given", nil)
	}
	if !isHTTP(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "", "open batch file", source, err)
		}
		defer f.Close()
		entries, err := Decode(io.LimitReader(f, maxListBytes))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "", "decode batch file", source, err)
		}
		l.logger.Info("batch list loaded", logging.String("source", source), logging.Int("items", len(entries)))
		return entries, nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	target := source
	if direct, ok := DirectDriveURL(source); ok {
		l.logger.Debug("converted drive share link", logging.String("url", direct))
		target = direct
	}

	body, finalURL, err := l.get(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if !looksLikeJSON(body) {
		form, ok := parseConfirmForm(string(body), finalURL)
		if !ok {
			return nil, services.Wrap(services.ErrFetch, "", "load batch", "received HTML instead of a JSON list", nil)
		}
		l.logger.Debug("following drive download confirmation", logging.String("url", form.Action))
		body, _, err = l.submit(ctx, form)
		if err != nil {
			return nil, err
		}
	}

	entries, err := Decode(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, "", "decode batch list", redact(source), err)
	}
	l.logger.Info("batch list loaded", logging.String("source", redact(source)), logging.Int("items", len(entries)))
	return entries, nil
}

func (l *Loader) submit(ctx context.Context, form confirmForm) ([]byte, *url.URL, error) {
	if form.Method == http.MethodPost {
		return l.get(ctx, http.MethodPost, form.Action, strings.NewReader(form.Values.Encode()))
	}
	target, err := url.Parse(form.Action)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrFetch, "", "load batch", "invalid confirmation url", err)
	}
	q := target.Query()
	for key, values := range form.Values {
		for _, v := range values {
			q.Set(key, v)
		}
	}
	target.RawQuery = q.Encode()
	return l.get(ctx, http.MethodGet, target.String(), nil)
}

func (l *Loader) get(ctx context.Context, method, target string, body io.Reader) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrFetch, "", "load batch", "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrFetch, "", "load batch", redact(target), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, services.Wrap(services.ErrFetch, "", "load batch",
			fmt.Sprintf("%s: unexpected status %d", redact(target), resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		return nil, nil, services.Wrap(services.ErrFetch, "", "load batch", "read body", err)
	}
	return data, resp.Request.URL, nil
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
