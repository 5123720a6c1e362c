package keystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsilins/vaultchat/internal/common"
)

func TestFileStore_GetBeforeSet(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileStore_SetGetDelete(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "keys"))
	ctx := context.Background()

	key := []byte{0x01, 0x02, 0xff}
	require.NoError(t, s.Set(ctx, key))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// deleting again is not an error
	assert.NoError(t, s.Delete(ctx))
}

func TestFileStore_Overwrite(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, []byte("one")))
	require.NoError(t, s.Set(ctx, []byte("two")))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}
