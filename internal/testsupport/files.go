package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// PatternBytes returns size bytes of a repeating 0..255 pattern so truncation
// or reordering shows up in comparisons.
func PatternBytes(size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(i % 256)
	}
	return out
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
