package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/fileutil"
)

// Ref identifies an uploaded object at the destination: a message id, an
// object key, or a relative path depending on the sink.
type Ref string

// Request describes one file handed to a sink.
type Request struct {
	Path       string
	Caption    string
	Streamable bool
	// FolderPath is the "/"-joined catalog folder the artifact came from.
	FolderPath string
	Progress   fileutil.ProgressFunc
}

// Sink accepts completed artifacts.
type Sink interface {
	Name() string
	Upload(ctx context.Context, req Request) (Ref, error)
}

// Checker is implemented by sinks that can verify their destination without
// uploading anything.
type Checker interface {
	Check(ctx context.Context) error
}

// RetryAfterError reports that the destination asked the caller to slow down.
type RetryAfterError struct {
	Delay time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.Delay, e.Err)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// RetryAfter extracts the requested back-off from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var target *RetryAfterError
	if errors.As(err, &target) {
		return target.Delay, true
	}
	return 0, false
}

// Caption formats the label attached to an upload. Part markers are added
// only when the artifact was split.
func Caption(displayName, folderPath string, part, total int, sizeBytes int64) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(displayName))
	if total > 1 {
		fmt.Fprintf(&b, " [Part %d/%d]", part, total)
	}
	if folder := strings.Trim(folderPath, "/"); folder != "" {
		b.WriteString("\nFolder: ")
		b.WriteString(folder)
	}
	if sizeBytes >= 0 {
		b.WriteString("\nSize: ")
		b.WriteString(humanize.IBytes(uint64(sizeBytes)))
	}
	return b.String()
}
