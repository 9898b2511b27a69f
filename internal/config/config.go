package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AllenNeuralDynamics/cosync/internal/progress"
)

// Config defines configuration for the cosync CLI.
type Config struct {
	Domain       string        `yaml:"domain"`
	TokenFile    string        `yaml:"token_file"`
	DownloadRoot string        `yaml:"download_root"`
	MaxSizeMB    float64       `yaml:"max_size_mb"`
	Force        bool          `yaml:"force"`
	Concurrency  int           `yaml:"concurrency"`
	ChunkSize    int64         `yaml:"chunk_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior for API requests.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		DownloadRoot: "codeocean-downloads",
		MaxSizeMB:    50,
		Concurrency:  4,
		ChunkSize:    128 * 1024, // 128KB
		PollInterval: 10 * time.Second,
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string chunk size and
// durations.
type yamlConfig struct {
	Domain       string          `yaml:"domain"`
	TokenFile    string          `yaml:"token_file"`
	DownloadRoot string          `yaml:"download_root"`
	MaxSizeMB    float64         `yaml:"max_size_mb"`
	Force        bool            `yaml:"force"`
	Concurrency  int             `yaml:"concurrency"`
	ChunkSize    string          `yaml:"chunk_size"`
	PollInterval string          `yaml:"poll_interval"`
	Retry        yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Domain != "" {
		cfg.Domain = yc.Domain
	}
	if yc.TokenFile != "" {
		cfg.TokenFile = yc.TokenFile
	}
	if yc.DownloadRoot != "" {
		cfg.DownloadRoot = yc.DownloadRoot
	}
	if yc.MaxSizeMB != 0 {
		cfg.MaxSizeMB = yc.MaxSizeMB
	}
	cfg.Force = yc.Force
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if yc.PollInterval != "" {
		d, err := time.ParseDuration(yc.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the COSYNC_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("COSYNC_DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv("COSYNC_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("COSYNC_DOWNLOAD_ROOT"); v != "" {
		c.DownloadRoot = v
	}
	if v := os.Getenv("COSYNC_MAX_SIZE_MB"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse COSYNC_MAX_SIZE_MB: %w", err)
		}
		c.MaxSizeMB = f
	}
	if v := os.Getenv("COSYNC_FORCE"); v != "" {
		c.Force = v == "true" || v == "1"
	}
	if v := os.Getenv("COSYNC_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse COSYNC_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("COSYNC_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse COSYNC_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("COSYNC_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse COSYNC_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv("COSYNC_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse COSYNC_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return errors.New("config: domain is required")
	}
	if c.DownloadRoot == "" {
		return errors.New("config: download_root is required")
	}
	if c.MaxSizeMB < 0 {
		return errors.New("config: max_size_mb must not be negative")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll_interval must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Domain != "" {
		c.Domain = override.Domain
	}
	if override.TokenFile != "" {
		c.TokenFile = override.TokenFile
	}
	if override.DownloadRoot != "" {
		c.DownloadRoot = override.DownloadRoot
	}
	if override.MaxSizeMB != 0 {
		c.MaxSizeMB = override.MaxSizeMB
	}
	if override.Force {
		c.Force = override.Force
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.PollInterval != 0 {
		c.PollInterval = override.PollInterval
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
