// Package keywrap implements the hybrid-encryption key layer: a fresh
// symmetric key is generated per file and wrapped (encrypted) once per
// intended recipient under that recipient's master key. Sharing a file with
// another recipient re-encrypts only the small wrapped key, never the file.
package keywrap

import (
	"fmt"

	"github.com/jsilins/vaultchat/internal/common"
	"github.com/jsilins/vaultchat/internal/cryptox"
	"github.com/jsilins/vaultchat/internal/manifest"
)

// Service wraps and unwraps per-file symmetric keys with the configured
// cipher provider.
type Service struct {
	cipher cryptox.CipherProvider
}

func NewService(cipher cryptox.CipherProvider) *Service {
	return &Service{cipher: cipher}
}

// GenerateKey returns a fresh random 256-bit file key.
func (s *Service) GenerateKey() ([]byte, error) {
	return cryptox.GenerateKey()
}

// Wrap encrypts fileKey under recipientKey and returns the wrapped key
// addressed to recipientID.
func (s *Service) Wrap(fileKey []byte, recipientID string, recipientKey []byte) (manifest.WrappedKey, error) {
	if len(fileKey) != cryptox.KeySize {
		return manifest.WrappedKey{}, fmt.Errorf("file key must be %d bytes, got %d", cryptox.KeySize, len(fileKey))
	}

	ciphertext, iv, tag, err := s.cipher.Encrypt(fileKey, recipientKey)
	if err != nil {
		return manifest.WrappedKey{}, fmt.Errorf("wrap key for %s: %w", recipientID, err)
	}

	return manifest.WrappedKey{
		RecipientID:  recipientID,
		EncryptedKey: ciphertext,
		KeyIV:        iv,
		KeyAuthTag:   tag,
	}, nil
}

// WrapForAll wraps fileKey once per recipient. recipientKeys maps recipient
// id to that recipient's master key material.
func (s *Service) WrapForAll(fileKey []byte, recipientKeys map[string][]byte) ([]manifest.WrappedKey, error) {
	out := make([]manifest.WrappedKey, 0, len(recipientKeys))
	for id, key := range recipientKeys {
		wk, err := s.Wrap(fileKey, id, key)
		if err != nil {
			return nil, err
		}
		out = append(out, wk)
	}
	return out, nil
}

// Unwrap locates the wrapped key addressed to userID and decrypts it with
// masterKey. Returns common.ErrAccessDenied when no key is addressed to the
// user, and common.ErrAuthentication when the tag fails to verify — which
// is what happens when the wrong key material (for example the sender's key
// instead of the recipient's own) is supplied.
func (s *Service) Unwrap(keys []manifest.WrappedKey, userID string, masterKey []byte) ([]byte, error) {
	var own *manifest.WrappedKey
	for i := range keys {
		if keys[i].RecipientID == userID {
			own = &keys[i]
			break
		}
	}
	if own == nil {
		return nil, fmt.Errorf("no wrapped key for %s: %w", userID, common.ErrAccessDenied)
	}

	fileKey, err := s.cipher.Decrypt(own.EncryptedKey, own.KeyIV, own.KeyAuthTag, masterKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap key for %s: %w", userID, err)
	}
	if len(fileKey) != cryptox.KeySize {
		return nil, fmt.Errorf("unwrapped key has bad length %d: %w", len(fileKey), common.ErrAuthentication)
	}

	return fileKey, nil
}
