package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jsilins/vaultchat/internal/manifest"
	"github.com/jsilins/vaultchat/internal/transfer"
)

// Fetch decrypts the attachment described by a JSON record file (either
// wire shape) into the decrypted cache directory. When message and
// attachment ids are given, the result is memoized in the cache so the next
// fetch is instant.
func (a *App) Fetch(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return fmt.Errorf("login first")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read attachment record: %w", err)
	}

	m, err := manifest.Normalize(raw)
	if err != nil {
		return err
	}

	req := transfer.DecryptRequest{
		FileID:   m.FileID,
		Manifest: m,
	}
	if len(args) >= 3 {
		req.MessageID = args[1]
		req.AttachmentID = args[2]
	}

	progress, stop := watchProgress()
	defer stop()
	req.Progress = progress

	path, err := a.orch.DecryptFile(ctx, req)
	if err != nil {
		return err
	}

	printlnFn("Decrypted:", path)
	return nil
}
