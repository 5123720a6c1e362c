package cli

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsilins/vaultchat/internal/config"
	"github.com/jsilins/vaultchat/internal/keystore"
)

func newTestApp(t *testing.T, dir string) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CacheDir = dir
	cfg.CacheDBPath = filepath.Join(dir, "cache.db")

	app, err := NewApp(cfg)
	require.NoError(t, err)
	return app
}

func stubPrompts(t *testing.T, userID, passphrase string) {
	t.Helper()
	origText, origPass, origPrint := getSimpleText, getPassword, printlnFn
	getSimpleText = func(*bufio.Reader, string, io.Writer) (string, error) {
		return userID, nil
	}
	getPassword = func(io.Writer) ([]byte, error) {
		// fresh copy per call: Login wipes the returned slice
		return []byte(passphrase), nil
	}
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() {
		getSimpleText, getPassword, printlnFn = origText, origPass, origPrint
	})
}

func TestLogin_SamePassphraseAcceptedAcrossSessions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stubPrompts(t, "alice", "correct horse")
	require.NoError(t, newTestApp(t, dir).Login(ctx))

	// a second session on the same device, same passphrase
	app := newTestApp(t, dir)
	require.NoError(t, app.Login(ctx))
	assert.True(t, app.isLoggedIn())
}

func TestLogin_WrongPassphraseDoesNotReplaceMasterKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stubPrompts(t, "alice", "correct horse")
	require.NoError(t, newTestApp(t, dir).Login(ctx))

	stored, err := keystore.NewFileStore(dir).Get(ctx)
	require.NoError(t, err)

	stubPrompts(t, "alice", "battery staple")
	app := newTestApp(t, dir)
	err = app.Login(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passphrase")
	assert.False(t, app.isLoggedIn())

	// the key that wraps this device's file keys must survive the attempt
	after, err := keystore.NewFileStore(dir).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, after)
}
