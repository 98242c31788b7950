package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func writeString(path, data string, perm os.FileMode) error {
	return WriteAtomic(path, perm, true, func(w io.Writer) error {
		_, err := io.WriteString(w, data)
		return err
	})
}

func TestWriteAtomicOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "colorbets.hcl")

	require.NoError(t, writeString(path, "number_of_stacks = 4\n", 0o644))
	require.NoError(t, writeString(path, "number_of_stacks = 5\n", 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "number_of_stacks = 5\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, []string{"colorbets.hcl"}, dirNames(t, dir), "no temp files left behind")
}

func TestWriteAtomicKeepsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "colorbets.hcl")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := WriteAtomic(path, 0o644, false, func(w io.Writer) error {
		_, err := io.WriteString(w, "replacement")
		return err
	})
	assert.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestWriteAtomicFailedWriteLeavesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "colorbets.hcl")
	boom := errors.New("boom")

	err := WriteAtomic(path, 0o644, true, func(w io.Writer) error {
		_, _ = io.WriteString(w, "half")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, dirNames(t, dir))
}

func TestWriteAtomicMissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope", "colorbets.hcl")
	assert.Error(t, writeString(path, "x", 0o644))
}
