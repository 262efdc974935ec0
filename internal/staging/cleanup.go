package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ferry/internal/logging"
)

// DirInfo describes one item directory in the staging area.
type DirInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modified"`
	Size    int64     `json:"size_bytes"`
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

func (r *CleanResult) fail(path string, err error) {
	r.Errors = append(r.Errors, CleanupError{Path: path, Error: err})
}

// CleanStale removes item directories last modified more than maxAge ago.
// Files at the root (the lock file) are never touched.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, stagingDir, logger, "stale", func(d DirInfo) bool { return d.ModTime.Before(cutoff) })
}

// CleanAll removes every item directory regardless of age. Callers must hold
// the staging lock.
func CleanAll(ctx context.Context, stagingDir string, logger *slog.Logger) CleanResult {
	return sweep(ctx, stagingDir, logger, "all", nil)
}

// ListDirectories returns the item directories currently in the staging area
// with their total size. A missing staging root yields an empty list.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	dirs, _, err := scan(stagingDir)
	if err != nil {
		return nil, err
	}
	for i := range dirs {
		dirs[i].Size = dirSize(dirs[i].Path)
	}
	return dirs, nil
}

// scan lists item directories under root. Entries whose metadata cannot be
// read are reported separately.
func scan(root string) ([]DirInfo, []CleanupError, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil, nil
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var (
		dirs     []DirInfo
		failures []CleanupError
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			failures = append(failures, CleanupError{Path: path, Error: err})
			continue
		}
		dirs = append(dirs, DirInfo{Name: entry.Name(), Path: path, ModTime: info.ModTime()})
	}
	return dirs, failures, nil
}

func sweep(ctx context.Context, stagingDir string, logger *slog.Logger, reason string, match func(DirInfo) bool) CleanResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanResult
	dirs, failures, err := scan(stagingDir)
	if err != nil {
		result.fail(stagingDir, err)
		return result
	}
	result.Errors = append(result.Errors, failures...)

	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if match != nil && !match(dir) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.fail(dir.Path, err)
			logging.WarnWithContext(logger, "failed to remove staging directory", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed staging directory",
			logging.String("path", dir.Path),
			logging.String("reason", reason),
			logging.Duration("age", time.Since(dir.ModTime).Round(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// dirSize is best effort; unreadable entries are skipped.
func dirSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
