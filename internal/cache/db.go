// Package cache is the local structured store for message history,
// per-conversation sync metadata and decrypted-attachment memos. SQLite
// under the hood; the cache is an optimization, never a source of truth,
// so read failures degrade to empty results while writes report errors.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/jsilins/vaultchat/internal/cache/migrations"
	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/logging"
)

// ClearHook is notified when cached data is destroyed so in-flight
// decryption tracking can be invalidated. conversationID is empty for a
// full clear.
type ClearHook func(conversationID string)

// Cache owns the SQLite store. Initialization is lazy, idempotent and safe
// to trigger concurrently from multiple call sites: every operation awaits
// the one-time open+migrate instead of racing a half-initialized store.
type Cache struct {
	dsn string
	log logging.Logger

	initOnce sync.Once
	db       *sql.DB
	initErr  error

	mu    sync.Mutex
	hooks []ClearHook
}

func New(dsn string, log logging.Logger) *Cache {
	return &Cache{dsn: dsn, log: log}
}

// OnClear registers a hook invoked after ClearConversation/ClearAll.
func (c *Cache) OnClear(h ClearHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

func (c *Cache) notifyClear(conversationID string) {
	c.mu.Lock()
	hooks := append([]ClearHook(nil), c.hooks...)
	c.mu.Unlock()
	for _, h := range hooks {
		h(conversationID)
	}
}

// ready opens the database and applies pending migrations exactly once.
// Subsequent calls return the memoized result. A failed open reports
// common.ErrCacheUnavailable so callers can degrade to network-only
// operation.
func (c *Cache) ready(ctx context.Context) (*sql.DB, error) {
	c.initOnce.Do(func() {
		db, err := sql.Open("sqlite", c.dsn)
		if err != nil {
			c.initErr = fmt.Errorf("open cache db: %w: %w", err, common.ErrCacheUnavailable)
			return
		}

		// A single connection serializes writers, so concurrent
		// transactions queue instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)

		if err := runMigrations(ctx, db); err != nil {
			_ = db.Close()
			c.initErr = fmt.Errorf("migrate cache db: %w: %w", err, common.ErrCacheUnavailable)
			return
		}

		c.db = db
	})

	if c.initErr != nil {
		return nil, c.initErr
	}
	return c.db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Close releases the underlying database, if it was ever opened.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
