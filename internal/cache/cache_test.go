package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c := New(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func msg(id, conv string, createdAt int64) Message {
	return Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       "alice",
		SenderName:     "Alice",
		Content:        "hi " + id,
		ContentType:    "text",
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestSaveMessages_Idempotent(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	m := msg("m1", "conv1", 100)
	n, err := c.SaveMessages(ctx, []Message{m})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// second save with changed fields must win, not duplicate
	m.Content = "edited"
	m.Edited = true
	_, err = c.SaveMessages(ctx, []Message{m})
	require.NoError(t, err)

	msgs, err := c.GetMessages(ctx, "conv1", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "edited", msgs[0].Content)
	assert.True(t, msgs[0].Edited)
}

func TestGetMessages_PaginationNoOverlapNoGap(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var batch []Message
	for i := 0; i < 120; i++ {
		batch = append(batch, msg(fmt.Sprintf("m%03d", i), "conv1", int64(1000+i)))
	}
	n, err := c.SaveMessages(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 120, n)

	first, err := c.GetMessages(ctx, "conv1", 50, nil)
	require.NoError(t, err)
	require.Len(t, first, 50)

	// newest first
	assert.Equal(t, "m119", first[0].ID)
	assert.Equal(t, "m070", first[49].ID)

	boundary := first[49].CreatedAt
	second, err := c.GetMessages(ctx, "conv1", 50, &boundary)
	require.NoError(t, err)
	require.Len(t, second, 50)
	assert.Equal(t, "m069", second[0].ID)
	assert.Equal(t, "m020", second[49].ID)

	seen := make(map[string]struct{})
	for _, m := range append(first, second...) {
		_, dup := seen[m.ID]
		require.False(t, dup, "duplicate %s across pages", m.ID)
		seen[m.ID] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestGetMessages_FiltersByConversation(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_, err := c.SaveMessages(ctx, []Message{
		msg("a1", "conv1", 1),
		msg("b1", "conv2", 2),
	})
	require.NoError(t, err)

	msgs, err := c.GetMessages(ctx, "conv2", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "b1", msgs[0].ID)
}

func TestUpdateAttachmentURI(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	m := msg("m1", "conv1", 1)
	m.Attachments = []Attachment{
		{ID: "a1", FileID: "f1", Name: "pic.jpg", MimeType: "image/jpeg", Size: 100},
		{ID: "a2", FileID: "f2", Name: "doc.pdf", MimeType: "application/pdf", Size: 200},
	}
	_, err := c.SaveMessages(ctx, []Message{m})
	require.NoError(t, err)

	ok, err := c.UpdateAttachmentURI(ctx, "m1", "a2", "/cache/decrypted/f2_doc.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	msgs, err := c.GetMessages(ctx, "conv1", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Attachments, 2)
	assert.Empty(t, msgs[0].Attachments[0].DecryptedURI)
	assert.Equal(t, "/cache/decrypted/f2_doc.pdf", msgs[0].Attachments[1].DecryptedURI)
}

func TestUpdateAttachmentURI_MissingMessageIsNoop(t *testing.T) {
	c := newCache(t)

	ok, err := c.UpdateAttachmentURI(context.Background(), "ghost", "a1", "/x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAttachmentURI_MissingAttachmentIsNoop(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	m := msg("m1", "conv1", 1)
	m.Attachments = []Attachment{{ID: "a1", FileID: "f1"}}
	_, err := c.SaveMessages(ctx, []Message{m})
	require.NoError(t, err)

	ok, err := c.UpdateAttachmentURI(ctx, "m1", "nope", "/x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAttachmentURI_ConcurrentSaveNeverLosesAttachments(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	one := msg("m1", "conv1", 1)
	one.Attachments = []Attachment{{ID: "a1", FileID: "f1"}}

	two := one
	two.Attachments = []Attachment{{ID: "a1", FileID: "f1"}, {ID: "a2", FileID: "f2"}}

	// Race a full-message upsert against the attachment patch. Whatever
	// the commit order, the attachment added by the save must survive:
	// the patch rewrites the list it read atomically with its read, so it
	// can never overwrite the save with a stale single-entry list.
	for i := 0; i < 25; i++ {
		_, err := c.SaveMessages(ctx, []Message{one})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.SaveMessages(ctx, []Message{two})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := c.UpdateAttachmentURI(ctx, "m1", "a1", "/decrypted/f1")
			assert.NoError(t, err)
		}()
		wg.Wait()

		msgs, err := c.GetMessages(ctx, "conv1", 1, nil)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Len(t, msgs[0].Attachments, 2, "iteration %d: save lost to a stale patch", i)
	}
}

func TestConversationMeta_UpsertAndForwardOnlySyncTime(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	got, err := c.GetConversationMeta(ctx, "conv1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.UpdateConversationMeta(ctx, ConversationMeta{
		ConversationID: "conv1", LastSyncTime: 100, TotalCached: 10, LastMessageID: "m10",
	}))

	// a stale writer must not rewind last_sync_time
	require.NoError(t, c.UpdateConversationMeta(ctx, ConversationMeta{
		ConversationID: "conv1", LastSyncTime: 50, TotalCached: 12, LastMessageID: "m12",
	}))

	got, err = c.GetConversationMeta(ctx, "conv1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(100), got.LastSyncTime)
	assert.Equal(t, int64(12), got.TotalCached)
	assert.Equal(t, "m12", got.LastMessageID)
}

func TestClearConversation_RemovesDataAndNotifies(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var cleared []string
	c.OnClear(func(id string) { cleared = append(cleared, id) })

	_, err := c.SaveMessages(ctx, []Message{msg("m1", "conv1", 1), msg("m2", "conv2", 2)})
	require.NoError(t, err)
	require.NoError(t, c.UpdateConversationMeta(ctx, ConversationMeta{ConversationID: "conv1", LastSyncTime: 1}))

	require.NoError(t, c.ClearConversation(ctx, "conv1"))

	msgs, _ := c.GetMessages(ctx, "conv1", 10, nil)
	assert.Empty(t, msgs)
	meta, _ := c.GetConversationMeta(ctx, "conv1")
	assert.Nil(t, meta)

	others, _ := c.GetMessages(ctx, "conv2", 10, nil)
	assert.Len(t, others, 1)

	assert.Equal(t, []string{"conv1"}, cleared)
}

func TestClearAll(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var cleared []string
	c.OnClear(func(id string) { cleared = append(cleared, id) })

	_, err := c.SaveMessages(ctx, []Message{msg("m1", "conv1", 1), msg("m2", "conv2", 2)})
	require.NoError(t, err)

	require.NoError(t, c.ClearAll(ctx))

	for _, conv := range []string{"conv1", "conv2"} {
		msgs, _ := c.GetMessages(ctx, conv, 10, nil)
		assert.Empty(t, msgs)
	}
	assert.Equal(t, []string{""}, cleared)
}

func TestConcurrentInit_SingleSchema(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.SaveMessages(ctx, []Message{msg(fmt.Sprintf("m%d", i), "conv1", int64(i))})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	msgs, err := c.GetMessages(ctx, "conv1", 20, nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 8)
}

func TestDegradedMode_ReadsEmptyWritesFail(t *testing.T) {
	// point the cache at an unopenable path
	dir := t.TempDir()
	c := New(filepath.Join(dir, "missing", "sub", "cache.db"), testLogger())
	ctx := context.Background()

	msgs, err := c.GetMessages(ctx, "conv1", 10, nil)
	assert.NoError(t, err)
	assert.Empty(t, msgs)

	meta, err := c.GetConversationMeta(ctx, "conv1")
	assert.NoError(t, err)
	assert.Nil(t, meta)

	_, err = c.SaveMessages(ctx, []Message{msg("m1", "conv1", 1)})
	assert.ErrorIs(t, err, common.ErrCacheUnavailable)
}
