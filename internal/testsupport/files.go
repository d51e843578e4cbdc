package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates a temporary directory holding files, keyed by
// slash-separated relative path, and returns its root. Tests use it to stand
// in for a cloned repository.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		WriteText(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
	return root
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
