package filereg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/romshark/debouncify/internal/filereg"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	base := t.TempDir()
	pathFoo := filepath.Join(base, "foo")
	pathBar := filepath.Join(base, "bar")

	require.NoError(t, os.WriteFile(pathFoo, []byte("foo1"), 0o644))
	require.NoError(t, os.WriteFile(pathBar, []byte("bar1"), 0o644))

	r := filereg.NewRegistry()
	require.Zero(t, r.Len())

	f := func(path string, expectChanged bool) {
		t.Helper()
		changed, err := r.Update(path)
		require.NoError(t, err)
		require.Equal(t, expectChanged, changed)
	}

	{ // Make sure foo doesn't exist.
		checksum, ok := r.Get(pathFoo)
		require.False(t, ok)
		require.Zero(t, checksum)
	}

	f(pathFoo, true) // New files are considered changed.
	f(pathBar, true)
	f(pathBar, false) // Same content.
	require.Equal(t, 2, r.Len())

	{ // Make sure foo & bar exist and have different checksums.
		checksumFoo, ok := r.Get(pathFoo)
		require.True(t, ok)
		checksumBar, ok := r.Get(pathBar)
		require.True(t, ok)
		require.NotEqual(t, checksumFoo, checksumBar)
	}

	// Rewrite foo with the same content.
	require.NoError(t, os.WriteFile(pathFoo, []byte("foo1"), 0o644))
	f(pathFoo, false)

	require.NoError(t, os.WriteFile(pathFoo, []byte("foo2"), 0o644))
	f(pathFoo, true)
	f(pathFoo, false)

	require.True(t, r.Deregister(pathFoo))
	require.False(t, r.Deregister(pathFoo)) // No-op
	require.True(t, r.Deregister(pathBar))
	require.Zero(t, r.Len())

	checksum, ok := r.Get(pathBar)
	require.False(t, ok)
	require.Zero(t, checksum)
}

func TestRegistryUpdateErrFileNotFound(t *testing.T) {
	r := filereg.NewRegistry()
	changed, err := r.Update("non-existent_file")
	require.False(t, changed)
	require.ErrorIs(t, err, os.ErrNotExist)
}
