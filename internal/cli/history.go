package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jsilins/vaultchat/internal/filex"
)

// History prints cached messages for a conversation, newest first.
func (a *App) History(ctx context.Context, args []string) error {
	conversationID := args[0]

	limit := 50
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("limit must be a number: %w", err)
		}
		limit = n
	}

	msgs, err := a.cache.GetMessages(ctx, conversationID, limit, nil)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		printlnFn("No cached messages for", conversationID)
		return nil
	}

	for _, m := range msgs {
		ts := time.UnixMilli(m.CreatedAt).Format(time.RFC3339)
		printlnFn(fmt.Sprintf("[%s] %s: %s", ts, m.SenderName, m.Content))
		for _, att := range m.Attachments {
			loc := att.DecryptedURI
			if loc == "" {
				loc = "(not fetched)"
			}
			printlnFn(fmt.Sprintf("    attachment %s (%s, %d bytes) %s", att.Name, att.MimeType, att.Size, loc))
		}
	}

	if meta, _ := a.cache.GetConversationMeta(ctx, conversationID); meta != nil {
		printlnFn(fmt.Sprintf("%d cached, last sync %s", meta.TotalCached,
			time.UnixMilli(meta.LastSyncTime).Format(time.RFC3339)))
	}
	return nil
}

// Sweep evicts decrypted files older than the retention window.
func (a *App) Sweep(ctx context.Context) error {
	dir, err := filex.DecryptedDir(a.config.CacheDir)
	if err != nil {
		return err
	}

	removed, err := filex.SweepOlderThan(dir, a.config.RetentionWindow)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Removed %d decrypted file(s)", removed))
	return nil
}

// Clear wipes cached messages: one conversation when an id is given,
// everything otherwise.
func (a *App) Clear(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if err := a.cache.ClearConversation(ctx, args[0]); err != nil {
			return err
		}
		printlnFn("Cleared conversation", args[0])
		return nil
	}

	if err := a.cache.ClearAll(ctx); err != nil {
		return err
	}
	printlnFn("Cleared all cached messages")
	return nil
}
