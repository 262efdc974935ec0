package sink

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCaption(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		part   int
		total  int
		size   int64
		want   string
	}{
		{"single", "", 1, 1, 1536, "Intro\nSize: 1.5 KiB"},
		{"split", "Week 1/Day 2", 2, 3, 2 << 30, "Intro [Part 2/3]\nFolder: Week 1/Day 2\nSize: 2.0 GiB"},
		{"no size", "/A/", 1, 1, -1, "Intro\nFolder: A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Caption(" Intro ", tt.folder, tt.part, tt.total, tt.size); got != tt.want {
				t.Fatalf("Caption = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	base := &RetryAfterError{Delay: 7 * time.Second, Err: errors.New("too many requests")}
	wrapped := fmt.Errorf("upload part 1: %w", base)
	delay, ok := RetryAfter(wrapped)
	if !ok || delay != 7*time.Second {
		t.Fatalf("RetryAfter = (%s, %v)", delay, ok)
	}
	if _, ok := RetryAfter(errors.New("plain")); ok {
		t.Fatal("plain error should not carry a delay")
	}
}
