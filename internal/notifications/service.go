package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/config"
)

const userAgent = "ferry/1"

// Event names a run milestone.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventItemFailed   Event = "item_failed"
	EventItemUploaded Event = "item_uploaded"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event fields. Missing keys render as empty values.
type Payload map[string]any

// Service publishes run events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render formats an event. Per-item uploads are suppressed; a run may
// upload thousands of items.
func render(event Event, p Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		body := fmt.Sprintf("Started %s run", p.text("mode", "catalog"))
		if source := p.text("source", ""); source != "" {
			body += ": " + source
		}
		return message{
			title: "Ferry - Run Started",
			body:  body,
			tags:  []string{"ferry", "run", "started"},
		}, true

	case EventRunCompleted:
		completed, failed := p.number("completed"), p.number("failed")
		duration := time.Duration(p.number("duration_seconds")) * time.Second
		body := fmt.Sprintf("Run complete: %d completed, %d skipped, %d failed in %s",
			completed, p.number("skipped"), failed, duration)
		if bytes := p.number("bytes"); bytes > 0 {
			body += fmt.Sprintf("\nTransferred: %s", humanize.IBytes(uint64(bytes)))
		}
		title := "Ferry - Run Complete"
		if failed > 0 {
			title = "Ferry - Run Complete (with errors)"
		}
		if p.flag("interrupted") {
			title = "Ferry - Run Interrupted"
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"ferry", "run", "completed"},
		}, true

	case EventItemFailed:
		return message{
			title: "Ferry - Item Failed",
			body:  fmt.Sprintf("Failed: %s\n%s", p.text("name", "unknown item"), p.text("error", "unknown error")),
			tags:  []string{"ferry", "item", "failed"},
		}, true

	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := p.text("context", ""); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		b.WriteString(p.text("error", "unknown"))
		return message{
			title:    "Ferry - Error",
			body:     b.String(),
			tags:     []string{"ferry", "error", "alert"},
			priority: "high",
		}, true

	case EventTest:
		return message{
			title:    "Ferry - Test",
			body:     "Notification system test",
			tags:     []string{"ferry", "test"},
			priority: "low",
		}, true

	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key, fallback string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case error:
		s = val.Error()
	default:
		s = fmt.Sprint(val)
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func (p Payload) number(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case time.Duration:
		return int64(v / time.Second)
	default:
		return 0
	}
}

func (p Payload) flag(key string) bool {
	v, _ := p[key].(bool)
	return v
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
