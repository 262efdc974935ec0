// Package directory copies artifacts into a local directory tree, used for
// archiving to mounted storage and for dry runs.
package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/fileutil"
	"ferry/internal/sink"
	"ferry/internal/textutil"
)

// Sink copies each file to <root>/<folder>/<file> with checksum verification.
type Sink struct {
	root string
}

// New constructs a directory sink rooted at root.
func New(root string) (*Sink, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("directory sink requires path")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	return &Sink{root: root}, nil
}

// Name implements sink.Sink.
func (s *Sink) Name() string { return "directory" }

// Upload copies req.Path and returns its path relative to the root.
func (s *Sink) Upload(ctx context.Context, req sink.Request) (sink.Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Base(req.Path)
	if folder := folderDir(req.FolderPath); folder != "" {
		rel = filepath.Join(folder, rel)
	}
	if err := fileutil.CopyFileVerified(req.Path, filepath.Join(s.root, rel), req.Progress); err != nil {
		return "", fmt.Errorf("copy to %s: %w", rel, err)
	}
	return sink.Ref(filepath.ToSlash(rel)), nil
}

// Check confirms the root accepts new files.
func (s *Sink) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".ferry-check-*")
	if err != nil {
		return fmt.Errorf("sink directory not writable: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}

// folderDir maps a catalog folder path to safe directory components.
func folderDir(folderPath string) string {
	var parts []string
	for _, segment := range strings.Split(folderPath, "/") {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		parts = append(parts, textutil.SafeFileName(segment, "folder"))
	}
	return filepath.Join(parts...)
}
