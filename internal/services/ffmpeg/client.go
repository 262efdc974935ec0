package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ferry/internal/services"
)

// ProgressUpdate captures ffmpeg -progress output.
type ProgressUpdate struct {
	Bytes   int64
	OutTime time.Duration
	Done    bool
}

// Remuxer defines the behaviour the transfer orchestrator needs.
type Remuxer interface {
	Remux(ctx context.Context, streamURL, destPath string, progress func(ProgressUpdate)) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs an ffmpeg client. A zero timeout disables the run limit.
func New(binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: timeout,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Args returns the ffmpeg argument list for remuxing streamURL into destPath.
func Args(streamURL, destPath string, withProgress bool) []string {
	args := []string{"-y", "-nostdin", "-loglevel", "error"}
	if withProgress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}
	return append(args, "-i", streamURL, "-c", "copy", "-bsf:a", "aac_adtstoasc", destPath)
}

// Remux copies the streams of streamURL into destPath without re-encoding.
// A non-zero exit, a timeout, or a missing or empty output file is reported
// as a transcode error and any partial output is removed.
func (c *Client) Remux(ctx context.Context, streamURL, destPath string, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(destPath) == "" {
		return services.Wrap(services.ErrTranscode, "remuxing", "prepare", "destination path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrTranscode, "remuxing", "prepare", "create destination directory", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	tail := newLineTail(5)
	parser := progressParser{}
	err := c.exec.Run(runCtx, c.binary, Args(streamURL, destPath, progress != nil), func(line string) {
		update, emit, consumed := parser.feed(line)
		if !consumed {
			tail.add(line)
			return
		}
		if emit && progress != nil {
			progress(update)
		}
	})
	if err != nil {
		_ = os.Remove(destPath)
		if runCtx.Err() != nil {
			err = errors.Join(err, runCtx.Err())
		}
		return services.Wrap(services.ErrTranscode, "remuxing", "ffmpeg", tail.String(), err)
	}

	info, statErr := os.Stat(destPath)
	if statErr != nil {
		return services.Wrap(services.ErrTranscode, "remuxing", "ffmpeg", "no output file produced", statErr)
	}
	if info.Size() == 0 {
		_ = os.Remove(destPath)
		return services.Wrap(services.ErrTranscode, "remuxing", "ffmpeg", "output file is empty", nil)
	}
	return nil
}

// progressParser accumulates -progress blocks, which end with a
// "progress=continue" or "progress=end" line.
type progressParser struct {
	current ProgressUpdate
}

// feed consumes one output line. consumed is false for lines that are not
// part of the progress stream; emit is true when a block completes.
func (p *progressParser) feed(line string) (update ProgressUpdate, emit, consumed bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || !isProgressKey(key) {
		return ProgressUpdate{}, false, false
	}
	switch key {
	case "total_size":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.Bytes = n
		}
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both keys in microseconds.
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			p.current.OutTime = time.Duration(n) * time.Microsecond
		}
	case "progress":
		update = p.current
		update.Done = value == "end"
		return update, true, true
	}
	return ProgressUpdate{}, false, true
}

func isProgressKey(key string) bool {
	switch key {
	case "total_size", "out_time_us", "out_time_ms", "out_time", "progress",
		"frame", "fps", "bitrate", "dup_frames", "drop_frames", "speed":
		return true
	}
	return strings.HasPrefix(key, "stream_")
}

type lineTail struct {
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, " | ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
	)

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onStdout != nil {
				mu.Lock()
				onStdout(scanner.Text())
				mu.Unlock()
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
