package config

import (
	"flag"
	"os"
	"time"

	"github.com/jsilins/vaultchat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend API (default from Config)
//	-d string   cache base directory
//	-db string  path of the message cache database
//	-cs int     chunk size in KiB
//	-r int      decrypted-file retention window in hours
//	-t int      backend request timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-db", "-cs", "-r", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the backend API")
	fs.StringVar(&cfg.CacheDir, "d", cfg.CacheDir, "cache base directory")
	fs.StringVar(&cfg.CacheDBPath, "db", cfg.CacheDBPath, "message cache database path")
	chunkKiB := fs.Int("cs", int(cfg.ChunkSize/1024), "chunk size (in KiB)")
	retentionHours := fs.Int("r", int(cfg.RetentionWindow.Hours()), "retention window (in hours)")
	timeoutSeconds := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ChunkSize = int64(*chunkKiB) * 1024
	cfg.RetentionWindow = time.Duration(*retentionHours) * time.Hour
	cfg.RequestTimeout = time.Duration(*timeoutSeconds) * time.Second
}
