// Package manifest defines the canonical in-memory description of an
// encrypted file: its chunk layout and the per-recipient wrapped keys.
// Wire records are normalized into these types exactly once at ingestion;
// downstream components never see the raw shapes.
package manifest

import (
	"fmt"

	"github.com/jsilins/vaultchat/internal/common"
)

// WrappedKey is a file's symmetric key encrypted for one recipient.
// Exactly one WrappedKey exists per recipient per file.
type WrappedKey struct {
	RecipientID  string `json:"recipientId"`
	EncryptedKey []byte `json:"encryptedSymmetricKey"`
	KeyIV        []byte `json:"keyIv"`
	KeyAuthTag   []byte `json:"keyAuthTag"`
}

// ChunkDescriptor describes one independently decryptable unit of the
// ciphertext. Offset and EncryptedSize address the ciphertext blob;
// OriginalSize is the plaintext length of the chunk.
type ChunkDescriptor struct {
	Index         int    `json:"index"`
	IV            []byte `json:"iv"`
	AuthTag       []byte `json:"chunkAuthTag"`
	Offset        int64  `json:"offset"`
	EncryptedSize int64  `json:"encryptedSize"`
	OriginalSize  int64  `json:"originalSize"`
}

// FileEncryptionManifest is created once at upload time and immutable
// thereafter. It is persisted server-side and referenced by message metadata.
type FileEncryptionManifest struct {
	FileID        string            `json:"fileId"`
	FileName      string            `json:"fileName"`
	FileType      string            `json:"fileType"`
	TotalChunks   int               `json:"totalChunks"`
	Chunks        []ChunkDescriptor `json:"chunks"`
	OriginalSize  int64             `json:"originalSize"`
	EncryptedSize int64             `json:"encryptedSize"`
	RecipientKeys []WrappedKey      `json:"recipientKeys"`
}

// KeyFor returns the wrapped key addressed to userID, or
// common.ErrAccessDenied when none exists.
func (m *FileEncryptionManifest) KeyFor(userID string) (*WrappedKey, error) {
	for i := range m.RecipientKeys {
		if m.RecipientKeys[i].RecipientID == userID {
			return &m.RecipientKeys[i], nil
		}
	}
	return nil, fmt.Errorf("no wrapped key for %s: %w", userID, common.ErrAccessDenied)
}

// Validate checks the chunk-layout invariants: indices contiguous from 0,
// offsets monotonically increasing and non-overlapping, and sizes summing
// to the recorded totals.
func (m *FileEncryptionManifest) Validate() error {
	if len(m.Chunks) == 0 || len(m.RecipientKeys) == 0 {
		return common.ErrMissingManifestData
	}
	if m.TotalChunks != len(m.Chunks) {
		return fmt.Errorf("totalChunks=%d but %d descriptors present", m.TotalChunks, len(m.Chunks))
	}

	var wantOffset, originalTotal, encryptedTotal int64
	for i, c := range m.Chunks {
		if c.Index != i {
			return fmt.Errorf("chunk index %d at position %d: indices must be contiguous from 0", c.Index, i)
		}
		if c.Offset != wantOffset {
			return fmt.Errorf("chunk %d offset %d, want %d: offsets must be contiguous", i, c.Offset, wantOffset)
		}
		if c.EncryptedSize <= 0 || c.OriginalSize <= 0 {
			return fmt.Errorf("chunk %d has non-positive size", i)
		}
		wantOffset += c.EncryptedSize
		originalTotal += c.OriginalSize
		encryptedTotal += c.EncryptedSize
	}

	if m.OriginalSize != 0 && m.OriginalSize != originalTotal {
		return fmt.Errorf("originalSize=%d but chunks sum to %d", m.OriginalSize, originalTotal)
	}
	if m.EncryptedSize != 0 && m.EncryptedSize != encryptedTotal {
		return fmt.Errorf("encryptedSize=%d but chunks sum to %d", m.EncryptedSize, encryptedTotal)
	}

	seen := make(map[string]struct{}, len(m.RecipientKeys))
	for _, k := range m.RecipientKeys {
		if k.RecipientID == "" {
			return fmt.Errorf("wrapped key with empty recipient id")
		}
		if _, dup := seen[k.RecipientID]; dup {
			return fmt.Errorf("duplicate wrapped key for recipient %s", k.RecipientID)
		}
		seen[k.RecipientID] = struct{}{}
	}

	return nil
}
