// Package chunker implements chunked streaming encryption and decryption.
// A file is processed in fixed-size chunks, each sealed independently with
// its own random IV and authentication tag, so peak memory stays O(chunk
// size) no matter how large the file is.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/cryptox"
	"github.com/jsilins/vaultchat/internal/manifest"
)

// DefaultChunkSize balances per-chunk IV/tag bookkeeping against peak
// memory. Tunable via config; fixed per file once encryption starts.
const DefaultChunkSize = 1 << 20

// ChunkSource supplies ciphertext bytes for one chunk at a time. Ranged
// HTTP, S3 objects and local files all implement it.
type ChunkSource interface {
	// ReadChunk returns exactly size bytes starting at offset.
	ReadChunk(ctx context.Context, offset, size int64) ([]byte, error)
}

// Engine performs the chunked transform with a given cipher provider.
type Engine struct {
	cipher    cryptox.CipherProvider
	chunkSize int64
}

func NewEngine(cipher cryptox.CipherProvider, chunkSize int64) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Engine{cipher: cipher, chunkSize: chunkSize}
}

// Encrypt reads src in fixed-size chunks, seals each one under key and
// writes the ciphertext (tag excluded, it lives in the descriptor) to dst.
// The returned manifest carries the chunk layout; the caller fills in
// FileID, FileName, FileType and RecipientKeys.
func (e *Engine) Encrypt(ctx context.Context, src io.Reader, dst io.Writer, key []byte) (*manifest.FileEncryptionManifest, error) {
	m := &manifest.FileEncryptionManifest{}

	buf := make([]byte, e.chunkSize)
	var offset int64

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := io.ReadFull(src, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read chunk %d: %w", index, err)
		}

		ciphertext, iv, tag, err := e.cipher.Encrypt(buf[:n], key)
		if err != nil {
			return nil, fmt.Errorf("encrypt chunk %d: %w", index, err)
		}

		if _, err := dst.Write(ciphertext); err != nil {
			return nil, fmt.Errorf("write chunk %d: %w", index, err)
		}

		m.Chunks = append(m.Chunks, manifest.ChunkDescriptor{
			Index:         index,
			IV:            iv,
			AuthTag:       tag,
			Offset:        offset,
			EncryptedSize: int64(len(ciphertext)),
			OriginalSize:  int64(n),
		})

		offset += int64(len(ciphertext))
		m.OriginalSize += int64(n)
		m.EncryptedSize += int64(len(ciphertext))
	}

	m.TotalChunks = len(m.Chunks)
	if m.TotalChunks == 0 {
		return nil, fmt.Errorf("source is empty")
	}

	return m, nil
}

// Decrypt streams the file described by m from src to dst. Chunks are
// processed in strict index order: each chunk's ciphertext is fetched,
// verified and written before the next is touched, so out-of-order writes
// can never corrupt the output. A failed tag aborts the whole run with a
// CorruptChunkError; nothing further is written and the caller must discard
// the partial output.
//
// onChunk, when non-nil, is invoked after each chunk is written with the
// index just completed.
func (e *Engine) Decrypt(ctx context.Context, src ChunkSource, m *manifest.FileEncryptionManifest, key []byte, dst io.Writer, onChunk func(index int)) error {
	if err := m.Validate(); err != nil {
		return err
	}

	for i := range m.Chunks {
		c := &m.Chunks[i]

		if err := ctx.Err(); err != nil {
			return err
		}

		ciphertext, err := src.ReadChunk(ctx, c.Offset, c.EncryptedSize)
		if err != nil {
			return fmt.Errorf("fetch chunk %d: %w", c.Index, err)
		}
		if int64(len(ciphertext)) != c.EncryptedSize {
			return &common.CorruptChunkError{
				Index: c.Index,
				Err:   fmt.Errorf("got %d bytes, descriptor says %d", len(ciphertext), c.EncryptedSize),
			}
		}

		plaintext, err := e.cipher.Decrypt(ciphertext, c.IV, c.AuthTag, key)
		if err != nil {
			return &common.CorruptChunkError{Index: c.Index, Err: err}
		}
		if int64(len(plaintext)) != c.OriginalSize {
			return &common.CorruptChunkError{
				Index: c.Index,
				Err:   fmt.Errorf("plaintext %d bytes, descriptor says %d", len(plaintext), c.OriginalSize),
			}
		}

		if _, err := dst.Write(plaintext); err != nil {
			return fmt.Errorf("write chunk %d: %w", c.Index, err)
		}

		if onChunk != nil {
			onChunk(c.Index)
		}
	}

	return nil
}
