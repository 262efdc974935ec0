package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/textutil"
)

// Area is a staging root shared by all workers of one run.
type Area struct {
	root string
}

// NewArea returns the staging area rooted at root, creating it if needed.
func NewArea(root string) (*Area, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Area{root: root}, nil
}

// Root returns the staging root.
func (a *Area) Root() string { return a.root }

// ItemDirName returns the directory name reserved for artifactID.
func ItemDirName(artifactID string) string {
	sum := sha256.Sum256([]byte(artifactID))
	return textutil.SanitizeToken(artifactID) + "-" + hex.EncodeToString(sum[:4])
}

// ItemDir returns the directory reserved for artifactID.
func (a *Area) ItemDir(artifactID string) string {
	return filepath.Join(a.root, ItemDirName(artifactID))
}

// Prepare creates an empty item directory, discarding leftovers from an
// earlier attempt at the same artifact.
func (a *Area) Prepare(artifactID string) (string, error) {
	dir := a.ItemDir(artifactID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("reset item directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create item directory: %w", err)
	}
	return dir, nil
}

// Release removes the item directory and everything in it.
func (a *Area) Release(artifactID string) error {
	if err := os.RemoveAll(a.ItemDir(artifactID)); err != nil {
		return fmt.Errorf("remove item directory: %w", err)
	}
	return nil
}
