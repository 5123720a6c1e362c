// Package filex manages the client's on-disk cache directories, in
// particular the decrypted/ directory holding plaintext attachment output.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DecryptedDirName is the subdirectory of the cache base dir that holds
// decrypted attachment files.
const DecryptedDirName = "decrypted"

// EnsureSubDir creates (if needed) and returns base/name.
func EnsureSubDir(base, name string) (string, error) {
	dir := filepath.Join(base, name)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// DecryptedDir returns the decrypted-output directory under base,
// creating it on demand.
func DecryptedDir(base string) (string, error) {
	return EnsureSubDir(base, DecryptedDirName)
}

// SweepOlderThan removes regular files in dir whose modification time is
// older than the retention window. Returns the number of files removed.
// Missing directory is not an error: there is simply nothing to sweep.
func SweepOlderThan(dir string, window time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-window)
	removed := 0

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}

	return removed, nil
}

// Purge removes dir and everything under it. Used for bulk eviction on
// logout or storage pressure.
func Purge(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge %s: %w", dir, err)
	}
	return nil
}
