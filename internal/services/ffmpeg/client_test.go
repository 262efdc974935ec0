package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ferry/internal/services"
	"ferry/internal/services/ffmpeg"
)

type stubExecutor struct {
	lines   []string
	err     error
	write   []byte
	binary  string
	args    []string
	calls   int
	blockOn bool
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	s.calls++
	s.binary = binary
	s.args = append([]string(nil), args...)
	for _, line := range s.lines {
		onStdout(line)
	}
	if s.write != nil {
		dest := args[len(args)-1]
		if err := os.WriteFile(dest, s.write, 0o644); err != nil {
			return err
		}
	}
	if s.blockOn {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func TestRemuxBuildsCommandAndReportsProgress(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "item", "Lesson 1.mp4")
	exec := &stubExecutor{
		write: []byte("mp4 data"),
		lines: []string{
			"frame=10", "total_size=1024", "out_time_us=2000000", "progress=continue",
			"total_size=4096", "out_time_ms=5000000", "progress=end",
		},
	}
	client, err := ffmpeg.New("ffmpeg", time.Minute, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var updates []ffmpeg.ProgressUpdate
	if err := client.Remux(context.Background(), "https://cdn/x.m3u8", dest, func(u ffmpeg.ProgressUpdate) {
		updates = append(updates, u)
	}); err != nil {
		t.Fatalf("Remux: %v", err)
	}

	want := "-y -nostdin -loglevel error -progress pipe:1 -nostats -i https://cdn/x.m3u8 -c copy -bsf:a aac_adtstoasc " + dest
	if got := strings.Join(exec.args, " "); got != want {
		t.Fatalf("args\n got %s\nwant %s", got, want)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %+v", updates)
	}
	if updates[0].Bytes != 1024 || updates[0].OutTime != 2*time.Second || updates[0].Done {
		t.Fatalf("unexpected first update %+v", updates[0])
	}
	if updates[1].Bytes != 4096 || updates[1].OutTime != 5*time.Second || !updates[1].Done {
		t.Fatalf("unexpected last update %+v", updates[1])
	}
}

func TestRemuxWithoutProgressOmitsProgressFlags(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.mp4")
	exec := &stubExecutor{write: []byte("x")}
	client, _ := ffmpeg.New("/usr/bin/ffmpeg", 0, ffmpeg.WithExecutor(exec))
	if err := client.Remux(context.Background(), "u", dest, nil); err != nil {
		t.Fatalf("Remux: %v", err)
	}
	if exec.binary != "/usr/bin/ffmpeg" || strings.Contains(strings.Join(exec.args, " "), "-progress") {
		t.Fatalf("unexpected invocation %s %v", exec.binary, exec.args)
	}
}

func TestRemuxFailureIsTranscodeError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.mp4")
	exec := &stubExecutor{
		write: []byte("partial"),
		lines: []string{"[hls] HTTP error 403 Forbidden", "Error opening input files"},
		err:   errors.New("exit status 1"),
	}
	client, _ := ffmpeg.New("ffmpeg", time.Minute, ffmpeg.WithExecutor(exec))
	err := client.Remux(context.Background(), "u", dest, nil)
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", err)
	}
	if !strings.Contains(err.Error(), "403 Forbidden") {
		t.Fatalf("expected ffmpeg output in error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat=%v", statErr)
	}
}

func TestRemuxMissingOrEmptyOutput(t *testing.T) {
	for name, exec := range map[string]*stubExecutor{
		"missing": {},
		"empty":   {write: []byte{}},
	} {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "a.mp4")
			client, _ := ffmpeg.New("ffmpeg", time.Minute, ffmpeg.WithExecutor(exec))
			if err := client.Remux(context.Background(), "u", dest, nil); !errors.Is(err, services.ErrTranscode) {
				t.Fatalf("expected transcode error, got %v", err)
			}
		})
	}
}

func TestRemuxTimeout(t *testing.T) {
	client, _ := ffmpeg.New("ffmpeg", 50*time.Millisecond, ffmpeg.WithExecutor(&stubExecutor{blockOn: true}))
	err := client.Remux(context.Background(), "u", filepath.Join(t.TempDir(), "a.mp4"), nil)
	if !errors.Is(err, services.ErrTranscode) || !services.IsTimeout(err) {
		t.Fatalf("expected transcode timeout, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ffmpeg.New("  ", time.Second); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
