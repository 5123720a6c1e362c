// Package keystore holds this device's master key material. The interface
// mirrors the OS-backed secure store (get/set/delete under a fixed key
// name); FileStore is the portable implementation used where no platform
// keychain is available.
package keystore

import "context"

// Store persists the device master key across restarts. It is never synced
// or exported. Get returns common.ErrNotFound when no key has been stored
// yet, which callers treat as "encryption not yet initialized".
type Store interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, key []byte) error
	Delete(ctx context.Context) error
}
