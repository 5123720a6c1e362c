package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jsilins/vaultchat/internal/dbx"
)

const messageColumns = `id, conversation_id, sender_id, sender_name, content, content_type,
	attachments, reactions, read_by, edited, created_at, updated_at`

// SaveMessages upserts a batch of messages in one transaction, keyed by
// message id. Idempotent: saving the same message twice leaves one row,
// with the second write's values winning. Network retries and duplicate
// socket events therefore cannot duplicate history.
func (c *Cache) SaveMessages(ctx context.Context, msgs []Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	db, err := c.ready(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for i := range msgs {
			if err := upsertMessage(ctx, tx, &msgs[i]); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save messages: %w", err)
	}

	return count, nil
}

func upsertMessage(ctx context.Context, tx dbx.DBTX, m *Message) error {
	attachments, err := marshalAttachments(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments for %s: %w", m.ID, err)
	}

	query := `INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender_name = excluded.sender_name,
			content = excluded.content,
			content_type = excluded.content_type,
			attachments = excluded.attachments,
			reactions = excluded.reactions,
			read_by = excluded.read_by,
			edited = excluded.edited,
			updated_at = excluded.updated_at`

	_, err = tx.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.SenderID, m.SenderName, m.Content, m.ContentType,
		attachments, rawOrEmptyList(m.Reactions), rawOrEmptyList(m.ReadBy),
		m.Edited, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert message %s: %w", m.ID, err)
	}
	return nil
}

// GetMessages returns up to limit messages for a conversation, newest
// first. A non-nil before restricts results to messages strictly older
// than that timestamp (exclusive), enabling backward pagination with no
// duplicate or skipped rows at the boundary.
//
// Read failures are logged and produce an empty result: the cache is never
// a source of truth.
func (c *Cache) GetMessages(ctx context.Context, conversationID string, limit int, before *int64) ([]Message, error) {
	db, err := c.ready(ctx)
	if err != nil {
		c.log.Warn(ctx, "cache unavailable, returning no messages", "error", err)
		return nil, nil
	}

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		c.log.Warn(ctx, "message query failed", "conversation_id", conversationID, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			c.log.Warn(ctx, "message scan failed", "error", err)
			return nil, nil
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		c.log.Warn(ctx, "message iteration failed", "error", err)
		return nil, nil
	}

	return result, nil
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	var m Message
	var attachments, reactions, readBy string

	if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName,
		&m.Content, &m.ContentType, &attachments, &reactions, &readBy,
		&m.Edited, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments for %s: %w", m.ID, err)
	}
	m.Reactions = json.RawMessage(reactions)
	m.ReadBy = json.RawMessage(readBy)

	return &m, nil
}

// UpdateAttachmentURI memoizes the decrypted local location of one
// attachment inside a message's attachment list, without rewriting the
// whole message from the network. Returns false (not an error) when the
// message no longer exists: it may have been deleted concurrently.
func (c *Cache) UpdateAttachmentURI(ctx context.Context, messageID, attachmentID, uri string) (bool, error) {
	db, err := c.ready(ctx)
	if err != nil {
		return false, err
	}

	// The read and the rewrite must be one atomic unit: a concurrent
	// SaveMessages landing between them would otherwise be overwritten
	// with the stale attachment list read here.
	patched := false
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT attachments FROM messages WHERE id = ?`, messageID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load attachments: %w", err)
		}

		var attachments []Attachment
		if err := json.Unmarshal([]byte(raw), &attachments); err != nil {
			return fmt.Errorf("unmarshal attachments: %w", err)
		}

		found := false
		for i := range attachments {
			if attachments[i].ID == attachmentID {
				attachments[i].DecryptedURI = uri
				found = true
				break
			}
		}
		if !found {
			return nil
		}

		updated, err := marshalAttachments(attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE messages SET attachments = ? WHERE id = ?`, updated, messageID)
		if err != nil {
			return fmt.Errorf("update attachments: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		patched = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update attachment uri for %s: %w", messageID, err)
	}
	return patched, nil
}

// GetAttachmentURI returns the memoized decrypted location for one
// attachment, or "" when none is recorded. Degrades to "" on store errors.
func (c *Cache) GetAttachmentURI(ctx context.Context, messageID, attachmentID string) (string, error) {
	db, err := c.ready(ctx)
	if err != nil {
		return "", nil
	}

	var raw string
	err = db.QueryRowContext(ctx, `SELECT attachments FROM messages WHERE id = ?`, messageID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		c.log.Warn(ctx, "attachment memo lookup failed", "message_id", messageID, "error", err)
		return "", nil
	}

	var attachments []Attachment
	if err := json.Unmarshal([]byte(raw), &attachments); err != nil {
		return "", nil
	}
	for i := range attachments {
		if attachments[i].ID == attachmentID {
			return attachments[i].DecryptedURI, nil
		}
	}
	return "", nil
}

// ClearConversation removes a conversation's messages and sync metadata,
// then notifies clear hooks so in-flight decryption tracking is dropped.
func (c *Cache) ClearConversation(ctx context.Context, conversationID string) error {
	db, err := c.ready(ctx)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM conversation_meta WHERE conversation_id = ?`, conversationID)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear conversation %s: %w", conversationID, err)
	}

	c.notifyClear(conversationID)
	return nil
}

// ClearAll wipes every cached message and all sync metadata.
func (c *Cache) ClearAll(ctx context.Context) error {
	db, err := c.ready(ctx)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM conversation_meta`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear all: %w", err)
	}

	c.notifyClear("")
	return nil
}
