// Package transfer orchestrates encrypted file movement: chunked
// encryption and key wrapping on upload, and deduplicated, streaming,
// progress-reporting decryption on download.
package transfer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/jsilins/vaultchat/internal/chunker"
	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/cryptox"
	"github.com/jsilins/vaultchat/internal/filex"
	"github.com/jsilins/vaultchat/internal/keystore"
	"github.com/jsilins/vaultchat/internal/keywrap"
	"github.com/jsilins/vaultchat/internal/logging"
	"github.com/jsilins/vaultchat/internal/manifest"
	"github.com/jsilins/vaultchat/internal/objstore"
)

// DefaultWaitCeiling bounds how long a caller waits on another caller's
// in-flight decryption of the same file before failing loudly.
const DefaultWaitCeiling = 2 * time.Minute

// KeyDirectory resolves other users' key material for wrapping.
type KeyDirectory interface {
	GetPublicKey(ctx context.Context, userID string) ([]byte, error)
}

// URLResolver turns a file id into a presigned, time-limited ciphertext
// URL. The URL is used for one decryption attempt and never cached.
type URLResolver interface {
	GetDownloadURL(ctx context.Context, fileID string) (string, error)
}

// AttachmentMemo is the slice of the cache the orchestrator talks to for
// decrypted-location memoization.
type AttachmentMemo interface {
	GetAttachmentURI(ctx context.Context, messageID, attachmentID string) (string, error)
	UpdateAttachmentURI(ctx context.Context, messageID, attachmentID, uri string) (bool, error)
}

// Options configures an Orchestrator.
type Options struct {
	UserID      string
	CacheDir    string
	ChunkSize   int64
	WaitCeiling time.Duration
	HTTPClient  *http.Client

	// NewSource overrides ciphertext source construction; tests use it to
	// serve chunks without a network.
	NewSource func(url string) chunker.ChunkSource
}

// Orchestrator drives uploads and downloads for one logged-in user.
type Orchestrator struct {
	cipher   cryptox.CipherProvider
	wrapper  *keywrap.Service
	engine   *chunker.Engine
	keys     keystore.Store
	keyDir   KeyDirectory
	resolver URLResolver
	memo     AttachmentMemo
	keyCache *cryptox.KeyCache
	log      logging.Logger

	userID      string
	cacheDir    string
	waitCeiling time.Duration
	httpClient  *http.Client
	newSource   func(url string) chunker.ChunkSource

	group    singleflight.Group
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewOrchestrator(
	cipher cryptox.CipherProvider,
	keys keystore.Store,
	keyDir KeyDirectory,
	resolver URLResolver,
	memo AttachmentMemo,
	log logging.Logger,
	opts Options,
) *Orchestrator {
	if opts.WaitCeiling <= 0 {
		opts.WaitCeiling = DefaultWaitCeiling
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}

	o := &Orchestrator{
		cipher:      cipher,
		wrapper:     keywrap.NewService(cipher),
		engine:      chunker.NewEngine(cipher, opts.ChunkSize),
		keys:        keys,
		keyDir:      keyDir,
		resolver:    resolver,
		memo:        memo,
		keyCache:    cryptox.NewKeyCache(),
		log:         log,
		userID:      opts.UserID,
		cacheDir:    opts.CacheDir,
		waitCeiling: opts.WaitCeiling,
		httpClient:  opts.HTTPClient,
		newSource:   opts.NewSource,
		inFlight:    make(map[string]struct{}),
	}
	if o.newSource == nil {
		o.newSource = func(url string) chunker.ChunkSource {
			return objstore.NewHTTPSource(o.httpClient, url)
		}
	}
	return o
}

// retryPolicy is the single reusable retry policy applied at the
// orchestrator boundary: capped fibonacci backoff, and only errors
// explicitly marked retryable (network-ish failures) are retried. Crypto,
// access and manifest errors always fail immediately.
func retryPolicy() retry.Backoff {
	b := retry.NewFibonacci(250 * time.Millisecond)
	b = retry.WithMaxRetries(3, b)
	b = retry.WithCappedDuration(5*time.Second, b)
	return b
}

// UploadResult is what EncryptAndUpload hands back: the immutable manifest
// plus where the ciphertext was staged locally.
type UploadResult struct {
	Manifest       *manifest.FileEncryptionManifest
	CiphertextPath string
}

// EncryptAndUpload chunk-encrypts the file at filePath under a fresh
// symmetric key and wraps that key once per recipient. The sender is
// always included as a recipient so their own sent files stay readable.
// The ciphertext is staged to the cache dir; pushing it to the object
// store is the caller's transport concern.
func (o *Orchestrator) EncryptAndUpload(ctx context.Context, filePath string, recipientIDs []string, progress chan<- ProgressEvent) (*UploadResult, error) {
	fileKey, err := o.wrapper.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate file key: %w", err)
	}
	defer common.WipeByteArray(fileKey)

	recipientKeys, err := o.collectRecipientKeys(ctx, recipientIDs)
	if err != nil {
		return nil, err
	}

	src, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	stagingDir, err := filex.EnsureSubDir(o.cacheDir, "staging")
	if err != nil {
		return nil, err
	}

	fileID := uuid.NewString()
	ciphertextPath := filepath.Join(stagingDir, fileID+".enc")

	dst, err := os.OpenFile(ciphertextPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create ciphertext file: %w", err)
	}

	emit(progress, PhaseEncrypting, 0)

	m, err := o.engine.Encrypt(ctx, src, dst, fileKey)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(ciphertextPath)
		return nil, fmt.Errorf("chunk-encrypt %s: %w", filePath, err)
	}

	emit(progress, PhaseEncrypting, 100)

	m.FileID = fileID
	m.FileName = filepath.Base(filePath)
	m.FileType = mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath)))

	m.RecipientKeys, err = o.wrapper.WrapForAll(fileKey, recipientKeys)
	if err != nil {
		_ = os.Remove(ciphertextPath)
		return nil, err
	}

	if err := m.Validate(); err != nil {
		_ = os.Remove(ciphertextPath)
		return nil, fmt.Errorf("manifest invalid after encryption: %w", err)
	}

	emit(progress, PhaseUploading, 0)

	return &UploadResult{Manifest: m, CiphertextPath: ciphertextPath}, nil
}

// collectRecipientKeys fetches key material for every recipient, adding
// the sender if absent. Key-directory fetches go through the retry policy.
func (o *Orchestrator) collectRecipientKeys(ctx context.Context, recipientIDs []string) (map[string][]byte, error) {
	ids := make([]string, 0, len(recipientIDs)+1)
	seen := make(map[string]struct{}, len(recipientIDs)+1)
	for _, id := range append(recipientIDs, o.userID) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	keys := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if id == o.userID {
			own, err := o.keys.Get(ctx)
			if err != nil {
				return nil, fmt.Errorf("own master key: %w", err)
			}
			keys[id] = own
			continue
		}

		var material []byte
		err := retry.Do(ctx, retryPolicy(), func(ctx context.Context) error {
			var err error
			material, err = o.keyDir.GetPublicKey(ctx, id)
			if err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("recipient key for %s: %w", id, err)
		}
		keys[id] = material
	}

	return keys, nil
}

// DecryptRequest identifies one attachment decryption.
type DecryptRequest struct {
	FileID   string
	Manifest *manifest.FileEncryptionManifest
	SenderID string

	// MessageID/AttachmentID, when set, enable memoization through the
	// cache so repeated opens skip network and crypto work entirely.
	MessageID    string
	AttachmentID string

	Progress chan<- ProgressEvent
}

// DecryptFile resolves, downloads and stream-decrypts one file to the
// decrypted cache directory, returning the local path.
//
// At most one decryption per file id runs at a time: concurrent callers
// share the same pending run and receive the same path. The wait on an
// existing run is bounded; on expiry the call fails with
// common.ErrDecryptionInFlight rather than wedging its caller forever.
func (o *Orchestrator) DecryptFile(ctx context.Context, req DecryptRequest) (string, error) {
	if req.Manifest == nil {
		return "", common.ErrMissingManifestData
	}

	// memoized result first; a dangling memo is a miss, not an error
	if req.MessageID != "" && req.AttachmentID != "" && o.memo != nil {
		if uri, _ := o.memo.GetAttachmentURI(ctx, req.MessageID, req.AttachmentID); uri != "" {
			if fi, err := os.Stat(uri); err == nil && fi.Size() > 0 {
				return uri, nil
			}
			o.log.Debug(ctx, "stale attachment memo, re-decrypting", "file_id", req.FileID, "uri", uri)
		}
	}

	o.mu.Lock()
	o.inFlight[req.FileID] = struct{}{}
	o.mu.Unlock()

	ch := o.group.DoChan(req.FileID, func() (any, error) {
		defer func() {
			o.mu.Lock()
			delete(o.inFlight, req.FileID)
			o.mu.Unlock()
		}()
		return o.decryptRun(ctx, req)
	})

	ceiling := time.NewTimer(o.waitCeiling)
	defer ceiling.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-ceiling.C:
		return "", fmt.Errorf("file %s: %w", req.FileID, common.ErrDecryptionInFlight)
	}
}

// ClearInFlight forgets all pending decryption runs. Invoked on logout and
// when cached data for the affected files is destroyed.
func (o *Orchestrator) ClearInFlight() {
	o.mu.Lock()
	keys := make([]string, 0, len(o.inFlight))
	for k := range o.inFlight {
		keys = append(keys, k)
	}
	o.mu.Unlock()

	for _, k := range keys {
		o.group.Forget(k)
	}
	o.keyCache.Clear()
}

// KeyCache exposes the session key cache so logout flows can wipe it.
func (o *Orchestrator) KeyCache() *cryptox.KeyCache { return o.keyCache }

func (o *Orchestrator) decryptRun(ctx context.Context, req DecryptRequest) (string, error) {
	m := req.Manifest

	fileKey, err := o.fileKey(ctx, req.FileID, m)
	if err != nil {
		return "", err
	}

	emit(req.Progress, PhaseDownloading, 0)

	var url string
	err = retry.Do(ctx, retryPolicy(), func(ctx context.Context) error {
		var err error
		url, err = o.resolver.GetDownloadURL(ctx, req.FileID)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("resolve download url for %s: %w", req.FileID, err)
	}

	src := o.newSource(url)
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	emit(req.Progress, PhaseDownloading, 100)

	dir, err := filex.DecryptedDir(o.cacheDir)
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(dir, sanitizeFileName(req.FileID, m.FileName))

	// Each run decrypts into its own temp file and renames into place only
	// on success. A run forgotten by ClearInFlight can therefore only ever
	// remove its own partial output, never another run's published result,
	// and two runs of the same file never share a write target.
	out, err := os.CreateTemp(dir, "."+sanitizeFileName(req.FileID, m.FileName)+"-*.part")
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	tmpPath := out.Name()

	emit(req.Progress, PhaseDecrypting, 0)

	total := m.TotalChunks
	err = o.engine.Decrypt(ctx, src, m, fileKey, out, func(index int) {
		emit(req.Progress, PhaseDecrypting, (index+1)*100/total)
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// a partial plaintext file must never be left looking valid
		_ = os.Remove(tmpPath)
		return "", err
	}

	emit(req.Progress, PhaseSaving, 0)

	fi, err := os.Stat(tmpPath)
	if err != nil || fi.Size() == 0 {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("output %s: %w", outPath, common.ErrDecryptionIncomplete)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish output %s: %w", outPath, err)
	}

	if req.MessageID != "" && req.AttachmentID != "" && o.memo != nil {
		if _, err := o.memo.UpdateAttachmentURI(ctx, req.MessageID, req.AttachmentID, outPath); err != nil {
			o.log.Warn(ctx, "attachment memo update failed", "file_id", req.FileID, "error", err)
		}
	}

	emit(req.Progress, PhaseSaving, 100)
	o.log.Info(ctx, "attachment decrypted", "file_id", req.FileID, "chunks", total, "bytes", fi.Size())

	return outPath, nil
}

// fileKey unwraps (or recalls) the symmetric key for a file. Always uses
// this user's own master key: the wrapped key was addressed to them.
func (o *Orchestrator) fileKey(ctx context.Context, fileID string, m *manifest.FileEncryptionManifest) ([]byte, error) {
	if key, ok := o.keyCache.Get(fileID); ok {
		return key, nil
	}

	masterKey, err := o.keys.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	fileKey, err := o.wrapper.Unwrap(m.RecipientKeys, o.userID, masterKey)
	if err != nil {
		return nil, err
	}

	o.keyCache.Put(fileID, fileKey)
	return fileKey, nil
}

func sanitizeFileName(fileID, name string) string {
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" {
		base = "file"
	}
	return fileID + "_" + base
}
