package cryptox

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jsilins/vaultchat/internal/common"
)

// ChaChaProvider implements CipherProvider with ChaCha20-Poly1305.
// Used where hardware AES is unavailable; same nonce and tag sizes as GCM.
type ChaChaProvider struct{}

func (p *ChaChaProvider) Name() string { return "chacha20-poly1305" }

func (p *ChaChaProvider) Encrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new chacha20poly1305: %w", err)
	}

	iv = common.GenerateRandByteArray(IVSize)

	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]

	return ciphertext, iv, tag, nil
}

func (p *ChaChaProvider) Decrypt(ciphertext, iv, tag, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("new chacha20poly1305: %w", err)
	}

	if len(iv) != IVSize || len(tag) != TagSize {
		return nil, fmt.Errorf("bad iv/tag length: %w", common.ErrAuthentication)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("chacha open: %w", common.ErrAuthentication)
	}
	return plaintext, nil
}
