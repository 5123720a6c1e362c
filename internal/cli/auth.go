package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"

	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/cryptox"
	"github.com/jsilins/vaultchat/internal/filex"
	"github.com/jsilins/vaultchat/internal/objstore"
	"github.com/jsilins/vaultchat/internal/transfer"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for a user id and passphrase, derives the master key with
// argon2id, stores it in the keystore and builds the transfer orchestrator
// for this session. Cache clears invalidate the orchestrator's in-flight
// tracking via the clear hook.
//
// The passphrase byte slice is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userID, err := getSimpleText(a.reader, "Enter user id", os.Stdout)
	if err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("user id must not be empty")
	}

	passphrase, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passphrase)

	masterKey := cryptox.DeriveMasterKey(passphrase, []byte("vaultchat:"+userID))
	defer common.WipeByteArray(masterKey)

	// A wrong passphrase must not overwrite the key that already wraps
	// this device's file keys. Verifiers are compared instead of raw key
	// material, in constant time.
	if existing, err := a.keys.Get(ctx); err == nil {
		match := subtle.ConstantTimeCompare(
			cryptox.MakeVerifier(existing),
			cryptox.MakeVerifier(masterKey),
		) == 1
		common.WipeByteArray(existing)
		if !match {
			return fmt.Errorf("passphrase does not match the master key stored on this device")
		}
	} else if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("read master key: %w", err)
	}

	if err := a.keys.Set(ctx, masterKey); err != nil {
		return fmt.Errorf("store master key: %w", err)
	}

	var resolver transfer.URLResolver = a.api
	if a.s3 != nil {
		resolver = &objstore.S3Resolver{Store: a.s3, Expires: presignExpiry}
	}

	orch := transfer.NewOrchestrator(a.cipher, a.keys, a.api, resolver, a.cache, a.log, transfer.Options{
		UserID:    userID,
		CacheDir:  a.config.CacheDir,
		ChunkSize: a.config.ChunkSize,
	})
	a.cache.OnClear(func(string) { orch.ClearInFlight() })

	a.orch = orch
	a.userID = userID

	printlnFn("Logged in as", userID)
	return nil
}

// Logout ends the session: in-flight transfers are forgotten, session keys
// wiped, the stored master key deleted and the decrypted output purged.
func (a *App) Logout(ctx context.Context) error {
	if a.orch != nil {
		a.orch.ClearInFlight()
	}
	if err := a.keys.Delete(ctx); err != nil {
		return err
	}

	dir, err := filex.DecryptedDir(a.config.CacheDir)
	if err == nil {
		if err := filex.Purge(dir); err != nil {
			a.log.Warn(ctx, "purge decrypted dir failed", "error", err)
		}
	}

	a.orch = nil
	a.userID = ""
	a.api.SetToken("")

	printlnFn("Logged out")
	return nil
}

// Token installs the backend API bearer token for subsequent requests.
func (a *App) Token(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: token <jwt>")
	}
	a.api.SetToken(args[0])
	printlnFn("Token installed")
	return nil
}
