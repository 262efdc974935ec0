// Package telegram uploads artifacts to a chat through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ferry/internal/config"
	"ferry/internal/fileutil"
	"ferry/internal/sink"
)

// MaxCaptionRunes is the Bot API caption limit.
const MaxCaptionRunes = 1024

// Sink sends files with sendVideo or sendDocument.
type Sink struct {
	apiURL  string
	token   string
	chatID  string
	timeout time.Duration
	http    *http.Client
}

// New constructs a Telegram sink. A zero timeout disables the per-call limit.
func New(cfg config.Telegram, timeout time.Duration, httpClient *http.Client) (*Sink, error) {
	token := strings.TrimSpace(cfg.BotToken)
	chatID := strings.TrimSpace(cfg.ChatID)
	if token == "" || chatID == "" {
		return nil, errors.New("telegram sink requires bot_token and chat_id")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Sink{apiURL: apiURL, token: token, chatID: chatID, timeout: timeout, http: httpClient}, nil
}

// Name implements sink.Sink.
func (s *Sink) Name() string { return "telegram" }

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      *struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Upload streams req.Path as a multipart body and returns the message id.
func (s *Sink) Upload(ctx context.Context, req sink.Request) (sink.Ref, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	method, field := "sendDocument", "document"
	if req.Streamable {
		method, field = "sendVideo", "video"
	}

	file, err := os.Open(req.Path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(form, s.chatID, req, field, file))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/bot"+s.token+"/"+method, body)
	if err != nil {
		_ = body.CloseWithError(err)
		return "", fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.http.Do(httpReq)
	if err != nil {
		_ = body.CloseWithError(err)
		return "", fmt.Errorf("%s: %w", method, redactURLError(err))
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%s: status %d: decode response: %w", method, resp.StatusCode, err)
	}
	if !decoded.OK || decoded.Result == nil {
		apiErr := fmt.Errorf("%s: telegram error %d: %s", method, decoded.ErrorCode, decoded.Description)
		if decoded.Parameters != nil && decoded.Parameters.RetryAfter > 0 {
			return "", &sink.RetryAfterError{Delay: time.Duration(decoded.Parameters.RetryAfter) * time.Second, Err: apiErr}
		}
		return "", apiErr
	}
	return sink.Ref(strconv.FormatInt(decoded.Result.MessageID, 10)), nil
}

// Check calls getMe to confirm the bot token is accepted.
func (s *Sink) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/bot"+s.token+"/getMe", nil)
	if err != nil {
		return fmt.Errorf("build getMe request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("getMe: %w", redactURLError(err))
	}
	defer resp.Body.Close()
	var decoded struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return fmt.Errorf("getMe: status %d: decode response: %w", resp.StatusCode, err)
	}
	if !decoded.OK {
		return fmt.Errorf("getMe: status %d: %s", resp.StatusCode, decoded.Description)
	}
	return nil
}

func writeForm(form *multipart.Writer, chatID string, req sink.Request, field string, file io.Reader) error {
	if err := form.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if caption := truncateRunes(req.Caption, MaxCaptionRunes); caption != "" {
		if err := form.WriteField("caption", caption); err != nil {
			return err
		}
	}
	if req.Streamable {
		if err := form.WriteField("supports_streaming", "true"); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile(field, filepath.Base(req.Path))
	if err != nil {
		return err
	}
	buf := make([]byte, fileutil.CopyBufferSize)
	if _, err := io.CopyBuffer(fileutil.NewProgressWriter(part, req.Progress), file, buf); err != nil {
		return err
	}
	return form.Close()
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

// redactURLError drops the request URL, which embeds the bot token.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
