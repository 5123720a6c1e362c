// Package cryptox implements the symmetric cipher engine: authenticated
// encryption of byte buffers under a 256-bit key, producing and consuming
// (ciphertext, IV, authentication tag) triples.
//
// Two providers implement the same contract: AES-256-GCM and
// ChaCha20-Poly1305. Callers depend only on CipherProvider; the concrete
// backend is selected once at startup.
package cryptox

import (
	"runtime"

	"github.com/jsilins/vaultchat/internal/common"
)

const (
	// KeySize is the symmetric key length in bytes (256 bits).
	KeySize = 32
	// IVSize is the nonce length in bytes (96 bits) for both providers.
	IVSize = 12
	// TagSize is the authentication tag length in bytes (128 bits).
	TagSize = 16
)

// CipherProvider is the authenticated-encryption contract.
//
// Encrypt MUST generate a fresh random IV on every call; IV reuse under the
// same key breaks both confidentiality and authenticity. Decrypt MUST verify
// the authentication tag before returning any plaintext and fail with
// common.ErrAuthentication when verification fails.
type CipherProvider interface {
	Encrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error)
	Decrypt(ciphertext, iv, tag, key []byte) ([]byte, error)
	Name() string
}

// NewProvider selects a cipher backend. AES-256-GCM is used on
// architectures with hardware AES support; elsewhere ChaCha20-Poly1305
// avoids timing-variable software AES.
func NewProvider() CipherProvider {
	if hasAESHardware() {
		return &GCMProvider{}
	}
	return &ChaChaProvider{}
}

func hasAESHardware() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

// GenerateKey returns a fresh random 256-bit symmetric key.
func GenerateKey() ([]byte, error) {
	return common.GenerateRandByteArray(KeySize), nil
}
