// Package cli is the interactive shell for the vaultchat client core:
// login/logout, encrypted send, attachment fetch, cached history and
// cache maintenance.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jsilins/vaultchat/internal/api"
	"github.com/jsilins/vaultchat/internal/cache"
	"github.com/jsilins/vaultchat/internal/config"
	"github.com/jsilins/vaultchat/internal/cryptox"
	"github.com/jsilins/vaultchat/internal/keystore"
	"github.com/jsilins/vaultchat/internal/logging"
	"github.com/jsilins/vaultchat/internal/objstore"
	"github.com/jsilins/vaultchat/internal/transfer"
)

// App ties the client core together for one interactive session.
type App struct {
	config *config.Config
	log    logging.Logger
	api    *api.Client
	cache  *cache.Cache
	keys   keystore.Store
	cipher cryptox.CipherProvider
	s3     *objstore.S3Store

	// orch is built at login, once the user identity is known.
	orch   *transfer.Orchestrator
	userID string
	reader *bufio.Reader
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	a := &App{
		config: cfg,
		log:    log,
		api:    api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout),
		cache:  cache.New(cfg.CacheDBPath, log),
		keys:   keystore.NewFileStore(cfg.CacheDir),
		cipher: cryptox.NewProvider(),
		reader: bufio.NewReader(os.Stdin),
	}

	if cfg.S3Endpoint != "" {
		a.s3 = objstore.NewS3Store(objstore.S3Config{
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3Endpoint,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	}

	return a, nil
}

func (a *App) isLoggedIn() bool {
	return a.orch != nil
}

func (a *App) getStatus() string {
	if a.userID == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userID)
}

// Run drives the REPL until EOF or exit, then releases the cache.
func (a *App) Run(ctx context.Context) {
	defer a.cache.Close()

	printlnFn("Welcome to vaultchat CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
