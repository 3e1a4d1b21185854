package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDirKeepsMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitkeep"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "deep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "deep", "a.js"), []byte("x"), 0644))

	require.NoError(t, ResetDir(dir, ".gitkeep"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".gitkeep", entries[0].Name())
}

func TestResetDirCreatesMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")
	require.NoError(t, ResetDir(dir))
	assert.True(t, Exists(dir))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0600))

	dst := filepath.Join(dir, "out", "nested", "icon.png")
	n, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	// overwrite
	require.NoError(t, os.WriteFile(src, []byte("new"), 0600))
	_, err = CopyFile(src, dst)
	require.NoError(t, err)
	data, _ = os.ReadFile(dst)
	assert.Equal(t, "new", string(data))
}

func TestCopyFileMissingSource(t *testing.T) {
	_, err := CopyFile(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, WriteFileAtomic(path, []byte("new"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFileModeFallback(t *testing.T) {
	assert.Equal(t, os.FileMode(0640), FileMode(filepath.Join(t.TempDir(), "missing"), 0640))
}
