package keywrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/cryptox"
	"github.com/jsilins/vaultchat/internal/manifest"
)

func newService(t *testing.T) (*Service, map[string][]byte) {
	t.Helper()
	s := NewService(&cryptox.GCMProvider{})

	masterKeys := make(map[string][]byte)
	for _, id := range []string{"alice", "bob"} {
		k, err := cryptox.GenerateKey()
		require.NoError(t, err)
		masterKeys[id] = k
	}
	return s, masterKeys
}

func TestWrapUnwrap_EveryRecipient(t *testing.T) {
	s, masterKeys := newService(t)

	fileKey, err := s.GenerateKey()
	require.NoError(t, err)

	wrapped, err := s.WrapForAll(fileKey, masterKeys)
	require.NoError(t, err)
	require.Len(t, wrapped, 2)

	for id, masterKey := range masterKeys {
		got, err := s.Unwrap(wrapped, id, masterKey)
		require.NoError(t, err, "recipient %s", id)
		assert.Equal(t, fileKey, got)
	}
}

func TestUnwrap_AccessDeniedForNonRecipient(t *testing.T) {
	s, masterKeys := newService(t)

	fileKey, _ := s.GenerateKey()
	wrapped, err := s.WrapForAll(fileKey, masterKeys)
	require.NoError(t, err)

	strangerKey, _ := cryptox.GenerateKey()
	_, err = s.Unwrap(wrapped, "mallory", strangerKey)
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestUnwrap_WrongMasterKeyFailsLoudly(t *testing.T) {
	s, masterKeys := newService(t)

	fileKey, _ := s.GenerateKey()
	wrapped, err := s.WrapForAll(fileKey, masterKeys)
	require.NoError(t, err)

	// unwrapping bob's key with alice's master key must fail authentication,
	// never silently yield garbage
	_, err = s.Unwrap(wrapped, "bob", masterKeys["alice"])
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestUnwrap_TamperedWrappedKey(t *testing.T) {
	s, masterKeys := newService(t)

	fileKey, _ := s.GenerateKey()
	wk, err := s.Wrap(fileKey, "alice", masterKeys["alice"])
	require.NoError(t, err)

	wk.EncryptedKey[0] ^= 0x01
	_, err = s.Unwrap([]manifest.WrappedKey{wk}, "alice", masterKeys["alice"])
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestWrap_RejectsShortFileKey(t *testing.T) {
	s, masterKeys := newService(t)
	_, err := s.Wrap(make([]byte, 16), "alice", masterKeys["alice"])
	assert.Error(t, err)
}
