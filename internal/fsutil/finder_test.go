package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}
}

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.hcl", "a.yaml", "nested/c.yml", "notes.txt")

	files, err := FindFilesByExtension(root, ".hcl", ".yaml", ".yml")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "a.yaml"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "nested", "c.yml"),
	}, files)

	require.Panics(t, func() { _, _ = FindFilesByExtension(root) })
}

func TestFindAll(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "one.hcl", "two.hcl")
	single := filepath.Join(root, "one.hcl")

	files, err := FindAll([]string{single, root, filepath.Join(root, "missing")}, ".hcl")
	require.NoError(t, err)
	require.Equal(t, []string{single, filepath.Join(root, "two.hcl")}, files,
		"duplicates are dropped and missing paths skipped")
}
