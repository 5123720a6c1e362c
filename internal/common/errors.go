// Package common defines shared constants and sentinel errors used across
// the vaultchat client core. Callers should use errors.Is to match the
// sentinel values and errors.As for the typed ones.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository/store-level errors.
	ErrNotFound = errors.New("not found")

	// ErrAuthentication means an authentication tag failed to verify:
	// either the ciphertext was tampered with or the wrong key was used.
	// Plaintext is never returned when this is raised.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAccessDenied means no wrapped key addressed to this user exists.
	// A sharing/permissions problem, not tampering.
	ErrAccessDenied = errors.New("access denied")

	// ErrMissingManifestData means the chunk list or recipient-key list is
	// absent or empty after checking every known manifest shape. Indicates
	// a bad upload; not retryable.
	ErrMissingManifestData = errors.New("missing manifest data")

	// ErrDecryptionIncomplete means the decrypted output file is missing
	// or empty after a decryption run reported success.
	ErrDecryptionIncomplete = errors.New("decryption incomplete")

	// ErrCacheUnavailable means the structured cache failed to initialize.
	// The messaging flow degrades to network-only operation.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrDecryptionInFlight means another caller's decryption of the same
	// file did not finish within the bounded wait.
	ErrDecryptionInFlight = errors.New("decryption already in flight")

	// ErrTokenExpired means the stored access token is past its expiry and
	// a request would be rejected; the caller should re-authenticate.
	ErrTokenExpired = errors.New("token expired")
)

// CorruptChunkError reports that a specific chunk's authentication tag
// failed to verify during chunked decryption. The whole file decryption
// is aborted and any partial output deleted.
type CorruptChunkError struct {
	Index int
	Err   error
}

func (e *CorruptChunkError) Error() string {
	return fmt.Sprintf("chunk %d corrupt: %v", e.Index, e.Err)
}

func (e *CorruptChunkError) Unwrap() error { return e.Err }

// Is makes CorruptChunkError match ErrAuthentication, since a bad tag is
// the underlying cause.
func (e *CorruptChunkError) Is(target error) bool {
	return target == ErrAuthentication
}
