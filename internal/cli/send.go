package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jsilins/vaultchat/internal/objstore"
	"github.com/jsilins/vaultchat/internal/transfer"
)

const presignExpiry = 15 * time.Minute

// watchProgress prints progress events until stopped. The returned stop
// function must be called exactly once.
func watchProgress() (chan<- transfer.ProgressEvent, func()) {
	progress := make(chan transfer.ProgressEvent, 64)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case ev := <-progress:
				printlnFn(fmt.Sprintf("  %s %d%%", ev.Phase, ev.Percent))
			case <-stop:
				return
			}
		}
	}()
	return progress, func() { close(stop) }
}

// Send encrypts a file for the given recipients and stages the ciphertext.
// With self-hosted object storage configured, the ciphertext is pushed to a
// presigned PUT URL and the staging copy removed; otherwise the staged path
// is printed for an external uploader. The manifest is written next to the
// ciphertext as JSON either way.
func (a *App) Send(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return fmt.Errorf("login first")
	}

	filePath, recipients := args[0], args[1:]

	progress, stop := watchProgress()
	defer stop()

	res, err := a.orch.EncryptAndUpload(ctx, filePath, recipients, progress)
	if err != nil {
		return err
	}

	manifestPath := res.CiphertextPath + ".manifest.json"
	data, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if a.s3 == nil {
		printlnFn("Encrypted:", res.CiphertextPath)
		printlnFn("Manifest: ", manifestPath)
		return nil
	}

	key := objstore.ObjectKey(res.Manifest.FileID)
	url, err := a.s3.PresignPut(ctx, key, presignExpiry)
	if err != nil {
		return err
	}

	f, err := os.Open(res.CiphertextPath)
	if err != nil {
		return fmt.Errorf("open staged ciphertext: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if err := objstore.UploadPresigned(ctx, nil, url, f, fi.Size()); err != nil {
		return err
	}
	_ = os.Remove(res.CiphertextPath)

	printlnFn("Uploaded as", key)
	printlnFn("Manifest:  ", manifestPath)
	return nil
}
