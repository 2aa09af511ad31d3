package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, ok, err := s.Get("token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("token", "abc: def"))
	require.NoError(t, s.Set("username", "ada"))

	v, ok, err := s.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc: def", v)

	require.NoError(t, s.Delete("token", "username", "absent"))
	_, ok, err = s.Get("username")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete("token"))
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	testStore(t, NewFile(path))
}

func TestFile_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	require.NoError(t, NewFile(path).Set("token", "t0k3n"))

	v, ok, err := NewFile(path).Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t0k3n", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "token: \"t0k3n\"")
}

func TestFile_EmptyAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, ok, err := NewFile(empty).Get("token")
	require.NoError(t, err)
	assert.False(t, ok)

	corrupt := filepath.Join(dir, "corrupt.yaml")
	require.NoError(t, os.WriteFile(corrupt, []byte("- a\n- b\n"), 0o600))
	_, _, err = NewFile(corrupt).Get("token")
	require.Error(t, err)
}
