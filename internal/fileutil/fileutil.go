package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyBufferSize is the bounded buffer used for every streaming copy.
const CopyBufferSize = 1 << 20

// ProgressFunc receives the cumulative number of bytes written.
type ProgressFunc func(written int64)

type countingWriter struct {
	w        io.Writer
	written  int64
	progress ProgressFunc
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	if c.progress != nil && n > 0 {
		c.progress(c.written)
	}
	return n, err
}

// NewProgressWriter wraps w so progress sees the running byte count.
func NewProgressWriter(w io.Writer, progress ProgressFunc) io.Writer {
	if progress == nil {
		return w
	}
	return &countingWriter{w: w, progress: progress}
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Missing parent directories of dst are created. Removes dst on any failure.
func CopyFileVerified(src, dst string, progress ProgressFunc) (err error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	sink := NewProgressWriter(io.MultiWriter(out, dstHasher), progress)

	written, err := io.CopyBuffer(sink, tee, make([]byte, CopyBufferSize))
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}

	if written != srcSize {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// SHA256File returns the hex digest of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, CopyBufferSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
