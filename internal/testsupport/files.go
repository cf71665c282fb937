package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteChart writes content to root/pack/song/name and returns the path.
// Empty pack or song components are skipped, so WriteChart(t, root, "", "",
// name, content) places the chart directly in root.
func WriteChart(t testing.TB, root, pack, song, name, content string) string {
	t.Helper()
	return WriteChartBytes(t, root, pack, song, name, []byte(content))
}

// WriteChartBytes is WriteChart for content that is not valid UTF-8.
func WriteChartBytes(t testing.TB, root, pack, song, name string, content []byte) string {
	t.Helper()

	parts := []string{root}
	for _, p := range []string{pack, song} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	dir := filepath.Join(parts...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Snapshot captures the bytes of every regular file under root keyed by path.
func Snapshot(t testing.TB, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[path] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot %s: %v", root, err)
	}
	return out
}
