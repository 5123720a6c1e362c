package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetConversationMeta returns the sync metadata for one conversation, or
// nil when none is recorded yet. Read failures degrade to nil.
func (c *Cache) GetConversationMeta(ctx context.Context, conversationID string) (*ConversationMeta, error) {
	db, err := c.ready(ctx)
	if err != nil {
		c.log.Warn(ctx, "cache unavailable, no conversation meta", "error", err)
		return nil, nil
	}

	var m ConversationMeta
	err = db.QueryRowContext(ctx,
		`SELECT conversation_id, last_sync_time, total_cached, last_message_id
		 FROM conversation_meta WHERE conversation_id = ?`, conversationID).
		Scan(&m.ConversationID, &m.LastSyncTime, &m.TotalCached, &m.LastMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		c.log.Warn(ctx, "conversation meta query failed", "conversation_id", conversationID, "error", err)
		return nil, nil
	}

	return &m, nil
}

// UpdateConversationMeta upserts the sync metadata after a successful sync
// batch. last_sync_time only moves forward: a stale writer can never
// rewind the sync point.
func (c *Cache) UpdateConversationMeta(ctx context.Context, m ConversationMeta) error {
	db, err := c.ready(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO conversation_meta (conversation_id, last_sync_time, total_cached, last_message_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			last_sync_time = MAX(last_sync_time, excluded.last_sync_time),
			total_cached = excluded.total_cached,
			last_message_id = excluded.last_message_id`,
		m.ConversationID, m.LastSyncTime, m.TotalCached, m.LastMessageID)
	if err != nil {
		return fmt.Errorf("update conversation meta %s: %w", m.ConversationID, err)
	}
	return nil
}
