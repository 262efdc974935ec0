package main

import (
	"io"
	"strings"
	"testing"
	"time"

	"ferry/internal/deps"
	"ferry/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Ledger", statusError, "database locked", false)
	want := "  Ledger:              [ERROR] database locked"
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Sink", statusOK, "Reachable", true)
	if !strings.HasPrefix(got, statusStyles[statusOK].color) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderCheck(t *testing.T) {
	tests := []struct {
		name     string
		result   preflight.Result
		advisory bool
		want     string
	}{
		{"passed", preflight.Result{Name: "Ledger", Passed: true, Detail: "sqlite"}, false, "[OK] sqlite"},
		{"failed", preflight.Result{Name: "Ledger", Detail: "locked"}, false, "[ERROR] locked"},
		{"advisory", preflight.Result{Name: "Catalog", Detail: "catalog.course_id must be set"}, true, "[WARN] catalog.course_id must be set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderCheck(tt.result, tt.advisory, false); !strings.Contains(got, tt.want) {
				t.Fatalf("renderCheck = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDependency(t *testing.T) {
	lines := []string{
		renderDependency(deps.Status{Name: "ffmpeg", Available: true, Command: "/usr/bin/ffmpeg", Detail: "ffmpeg version 7.1"}, false),
		renderDependency(deps.Status{Name: "ffmpeg", Optional: true, Detail: `binary "ffmpeg" not found`, Description: "needed for HLS links"}, false),
		renderDependency(deps.Status{Name: "ffmpeg", Detail: `binary "ffmpeg" not found`, Description: "remuxes catalog videos"}, false),
	}
	if !strings.Contains(lines[0], "[OK] /usr/bin/ffmpeg (ffmpeg version 7.1)") {
		t.Fatalf("unexpected available line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN]") {
		t.Fatalf("expected optional dependency to warn, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR]") || !strings.Contains(lines[2], "remuxes catalog videos") {
		t.Fatalf("expected required dependency error, got %q", lines[2])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"minutes": {"45m", "45m"},
		"hours":   {"5h30m", "5h"},
		"days":    {"50h", "2d"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, err := time.ParseDuration(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got := formatDuration(d); got != tt.want {
				t.Fatalf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
