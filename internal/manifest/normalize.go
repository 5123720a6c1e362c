package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/jsilins/vaultchat/internal/common"
)

// wireAttachment mirrors the two shapes a file-attachment record can take
// on the wire. Older clients put chunks and recipientKeys at the top level;
// newer ones nest them under encryptionMetadata. Both are equally valid.
type wireAttachment struct {
	FileID        string            `json:"fileId"`
	FileName      string            `json:"fileName"`
	FileType      string            `json:"fileType"`
	TotalChunks   int               `json:"totalChunks"`
	Chunks        []ChunkDescriptor `json:"chunks"`
	OriginalSize  int64             `json:"originalSize"`
	EncryptedSize int64             `json:"encryptedSize"`
	RecipientKeys []WrappedKey      `json:"recipientKeys"`

	EncryptionMetadata *struct {
		TotalChunks   int               `json:"totalChunks"`
		Chunks        []ChunkDescriptor `json:"chunks"`
		OriginalSize  int64             `json:"originalSize"`
		EncryptedSize int64             `json:"encryptedSize"`
		RecipientKeys []WrappedKey      `json:"recipientKeys"`
	} `json:"encryptionMetadata"`
}

// Normalize parses a raw attachment record into the canonical manifest,
// accepting chunk and key lists either at the top level or nested under
// encryptionMetadata. An absent or empty chunk/key list after checking both
// locations is common.ErrMissingManifestData.
func Normalize(raw []byte) (*FileEncryptionManifest, error) {
	var w wireAttachment
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse attachment record: %w", err)
	}

	m := &FileEncryptionManifest{
		FileID:        w.FileID,
		FileName:      w.FileName,
		FileType:      w.FileType,
		TotalChunks:   w.TotalChunks,
		Chunks:        w.Chunks,
		OriginalSize:  w.OriginalSize,
		EncryptedSize: w.EncryptedSize,
		RecipientKeys: w.RecipientKeys,
	}

	if nested := w.EncryptionMetadata; nested != nil {
		if len(m.Chunks) == 0 {
			m.Chunks = nested.Chunks
			m.TotalChunks = nested.TotalChunks
			if nested.OriginalSize != 0 {
				m.OriginalSize = nested.OriginalSize
			}
			if nested.EncryptedSize != 0 {
				m.EncryptedSize = nested.EncryptedSize
			}
		}
		if len(m.RecipientKeys) == 0 {
			m.RecipientKeys = nested.RecipientKeys
		}
	}

	if len(m.Chunks) == 0 || len(m.RecipientKeys) == 0 {
		return nil, fmt.Errorf("attachment %q: %w", w.FileID, common.ErrMissingManifestData)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("attachment %q: %w", w.FileID, err)
	}

	return m, nil
}
