// Package config assembles runtime settings for the vaultchat client from
// three layers: built-in defaults, an optional JSON file, then command-line
// flags. Later layers win.
package config

import "time"

// Config holds runtime settings for the vaultchat client core.
//
// Fields:
//   - APIBaseURL: base URL of the backend REST API.
//   - CacheDir: base directory for staged ciphertext and decrypted output.
//   - CacheDBPath: path of the SQLite message cache database file.
//   - ChunkSize: chunk size in bytes for file encryption.
//   - RetentionWindow: how long decrypted files survive before the sweep.
//   - RequestTimeout: per-request timeout for backend API calls.
//   - S3*: optional self-hosted object storage; empty endpoint disables it
//     and downloads go through backend-resolved presigned URLs instead.
type Config struct {
	APIBaseURL      string
	CacheDir        string
	CacheDBPath     string
	ChunkSize       int64
	RetentionWindow time.Duration
	RequestTimeout  time.Duration

	S3Region    string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.CacheDir = "vaultchat-data"
	c.CacheDBPath = "vaultchat-data/cache.db"
	c.ChunkSize = 1 << 20
	c.RetentionWindow = 24 * time.Hour
	c.RequestTimeout = 30 * time.Second
	c.S3Region = "us-east-1"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
