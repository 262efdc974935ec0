package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// PatternBytes returns n deterministic bytes. The 251-byte period keeps
// misplaced chunk boundaries visible when parts are reassembled.
func PatternBytes(n int64) []byte {
	if n < 0 {
		n = 0
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// WriteFile fills the target path with size pattern bytes, creating parent
// directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, PatternBytes(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
