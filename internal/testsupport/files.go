package testsupport

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size filler bytes to path, creating parent directories.
// Sizes below one are raised to one so the file reads as non-empty media.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeFile(t, path, bytes.Repeat([]byte{'V'}, int(max(size, 1))))
}

// TouchEmpty creates a zero-byte file at path.
func TouchEmpty(t testing.TB, path string) {
	t.Helper()
	writeFile(t, path, nil)
}

// Exists reports whether path exists. Stat errors other than not-exist fail
// the test.
func Exists(t testing.TB, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true
	case errors.Is(err, fs.ErrNotExist):
		return false
	default:
		t.Fatalf("stat %s: %v", path, err)
		return false
	}
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
