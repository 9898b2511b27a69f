// Package config defines configuration structures for the cosync CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (COSYNC_ prefix)
//   - YAML configuration file
//
// The API token is resolved separately by ResolveToken: the COSYNC_TOKEN
// environment variable first, then the configured secret file. The token is
// never logged.
//
// # Structure
//
//	type Config struct {
//	    Domain       string
//	    TokenFile    string
//	    DownloadRoot string
//	    MaxSizeMB    float64
//	    Force        bool
//	    Concurrency  int
//	    ChunkSize    int64
//	    PollInterval time.Duration
//	    Retry        RetryConfig
//	}
package config
