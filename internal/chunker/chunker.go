package chunker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ferry/internal/fileutil"
)

// Layout selects how bytes are distributed across parts.
type Layout string

const (
	// LayoutBalanced sizes every part at ceil(size/n); the last part is shorter.
	LayoutBalanced Layout = "balanced"
	// LayoutFill fills each part to the ceiling; the last part takes the remainder.
	LayoutFill Layout = "fill"
)

// Part is one piece of a split artifact. Index is 1-based.
type Part struct {
	Index     int
	Total     int
	Path      string
	SizeBytes int64
}

// ErrInvalidCeiling is returned for a non-positive ceiling.
var ErrInvalidCeiling = errors.New("size ceiling must be positive")

// ParseLayout validates a configured layout name. Empty selects balanced.
func ParseLayout(value string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(value))) {
	case "", LayoutBalanced:
		return LayoutBalanced, nil
	case LayoutFill:
		return LayoutFill, nil
	default:
		return "", fmt.Errorf("unknown part layout %q (want balanced or fill)", value)
	}
}

type options struct {
	layout   Layout
	progress fileutil.ProgressFunc
	bufSize  int
}

// Option customizes Split.
type Option func(*options)

// WithLayout selects the part size layout.
func WithLayout(layout Layout) Option {
	return func(o *options) {
		if layout != "" {
			o.layout = layout
		}
	}
}

// WithProgress reports cumulative bytes written across all parts.
func WithProgress(fn fileutil.ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// Plan returns the part sizes for an artifact of size bytes. The result has a
// single entry when size fits under the ceiling.
func Plan(size, ceiling int64, layout Layout) []int64 {
	if ceiling <= 0 || size <= ceiling {
		return []int64{size}
	}
	numParts := (size + ceiling - 1) / ceiling
	partSize := ceiling
	if layout != LayoutFill {
		partSize = (size + numParts - 1) / numParts
	}
	sizes := make([]int64, 0, numParts)
	remaining := size
	for remaining > 0 {
		n := min(partSize, remaining)
		sizes = append(sizes, n)
		remaining -= n
	}
	return sizes
}

// PartPath returns the path of part index (1-based) out of total for source.
func PartPath(source string, index, total int) string {
	dir := filepath.Dir(source)
	name := filepath.Base(source)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	width := max(3, len(strconv.Itoa(total)))
	return filepath.Join(dir, fmt.Sprintf("%s.%0*d%s", base, width, index, ext))
}

// Split partitions path into parts no larger than ceiling. On error the parts
// created so far are returned alongside the error and the source is left in
// place; callers clean up with Remove.
func Split(path string, ceiling int64, opts ...Option) ([]Part, error) {
	if ceiling <= 0 {
		return nil, ErrInvalidCeiling
	}
	cfg := options{layout: LayoutBalanced, bufSize: fileutil.CopyBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("split %s: is a directory", path)
	}
	size := info.Size()
	if size <= ceiling {
		return []Part{{Index: 1, Total: 1, Path: path, SizeBytes: size}}, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	sizes := Plan(size, ceiling, cfg.layout)
	total := len(sizes)
	parts := make([]Part, 0, total)
	buf := make([]byte, cfg.bufSize)
	var written int64
	for i, partSize := range sizes {
		part := Part{Index: i + 1, Total: total, Path: PartPath(path, i+1, total)}
		n, created, err := writePart(src, part.Path, partSize, buf, func(delta int64) {
			if cfg.progress != nil {
				cfg.progress(written + delta)
			}
		})
		written += n
		part.SizeBytes = n
		if err != nil {
			_ = src.Close()
			if created {
				parts = append(parts, part)
			}
			return parts, fmt.Errorf("write part %d/%d: %w", part.Index, total, err)
		}
		parts = append(parts, part)
	}
	if err := src.Close(); err != nil {
		return parts, fmt.Errorf("close source: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return parts, fmt.Errorf("remove source: %w", err)
	}
	return parts, nil
}

// writePart copies size bytes into dst. created reports whether dst was
// opened, so a failed part can still be cleaned up.
func writePart(src io.Reader, dst string, size int64, buf []byte, progress fileutil.ProgressFunc) (n int64, created bool, err error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, false, err
	}
	w := fileutil.NewProgressWriter(out, progress)
	n, err = io.CopyBuffer(w, io.LimitReader(src, size), buf)
	if err == nil && n != size {
		err = fmt.Errorf("short read: wrote %d of %d bytes", n, size)
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return n, true, err
}

// Remove deletes every part file, ignoring files that are already gone. It
// returns the first other error encountered.
func Remove(parts []Part) error {
	var firstErr error
	for _, part := range parts {
		if part.Path == "" {
			continue
		}
		if err := os.Remove(part.Path); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
