package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ferry/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTranscode, "downloading", "remux", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"downloading", "remux", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapTagsDeadlineAsTimeout(t *testing.T) {
	err := services.Wrap(services.ErrDownload, "downloading", "http get", "", fmt.Errorf("read body: %w", context.DeadlineExceeded))
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected download marker, got %v", err)
	}
	if !services.IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if kind := services.Kind(err); kind != "timeout" {
		t.Fatalf("expected timeout to outrank the stage marker, got %q", kind)
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrFetch, "walk", "list", "", nil), "fetch"},
		{services.Wrap(services.ErrSplit, "chunking", "", "", nil), "split"},
		{services.Wrap(services.ErrUpload, "uploading", "", "", nil), "upload"},
		{services.Wrap(services.ErrLedger, "", "put", "", nil), "ledger"},
		{services.Wrap(services.ErrUpload, "uploading", "", "", fmt.Errorf("send: %w", context.DeadlineExceeded)), "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "cancelled"},
		{errors.New("other"), "unknown"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
