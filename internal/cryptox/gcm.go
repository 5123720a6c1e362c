package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/jsilins/vaultchat/internal/common"
)

// GCMProvider implements CipherProvider with AES-256-GCM.
type GCMProvider struct{}

func (p *GCMProvider) Name() string { return "aes-256-gcm" }

func (p *GCMProvider) Encrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = common.GenerateRandByteArray(IVSize)

	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]

	return ciphertext, iv, tag, nil
}

func (p *GCMProvider) Decrypt(ciphertext, iv, tag, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(iv) != IVSize || len(tag) != TagSize {
		return nil, fmt.Errorf("bad iv/tag length: %w", common.ErrAuthentication)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", common.ErrAuthentication)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
