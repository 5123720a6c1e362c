package filex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSubDir_CreatesAndIsIdempotent(t *testing.T) {
	base := t.TempDir()

	dir, err := EnsureSubDir(base, DecryptedDirName)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	again, err := EnsureSubDir(base, DecryptedDirName)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestSweepOlderThan(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "old.bin")
	fresh := filepath.Join(dir, "fresh.bin")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0o600))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	removed, err := SweepOlderThan(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestSweepOlderThan_MissingDir(t *testing.T) {
	removed, err := SweepOlderThan(filepath.Join(t.TempDir(), "nope"), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestPurge(t *testing.T) {
	base := t.TempDir()
	dir, err := DecryptedDir(base)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o600))

	require.NoError(t, Purge(dir))
	assert.NoDirExists(t, dir)
}
