// Package config loads wordchain settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/japaniel/wordchain/pkg/article"
	"github.com/japaniel/wordchain/pkg/db"
	"github.com/japaniel/wordchain/pkg/text"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all wordchain configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`

	// Trigger is the word that makes Reply answer a message.
	Trigger string `yaml:"trigger"`
	// Tokenizer is "whitespace" or "japanese".
	Tokenizer string `yaml:"tokenizer"`

	Ingest IngestConfig  `yaml:"ingest"`
	Fetch  FetchConfig   `yaml:"fetch"`
	Log    LoggingConfig `yaml:"log"`
}

// DatabaseConfig selects the sqlite file and driver.
type DatabaseConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
}

// IngestConfig tunes file ingestion.
type IngestConfig struct {
	Workers       int `yaml:"workers"`
	ProgressEvery int `yaml:"progress_every"`
}

// FetchConfig tunes article downloads.
type FetchConfig struct {
	Timeout      string `yaml:"timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:   "wordchain.db",
			Driver: db.DriverCGO,
		},
		Trigger:   "_",
		Tokenizer: text.TokenizerWhitespace,
		Ingest: IngestConfig{
			Workers:       4,
			ProgressEvery: 1000,
		},
		Fetch: FetchConfig{
			Timeout:      "30s",
			MaxBodyBytes: article.DefaultMaxBodyBytes,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file, or an empty path, yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. WORDCHAIN_DB
// wins over the older WORDS_DB.
func (c *Config) applyEnvOverrides() error {
	if path := os.Getenv("WORDS_DB"); path != "" {
		c.Database.Path = path
	}
	if path := os.Getenv("WORDCHAIN_DB"); path != "" {
		c.Database.Path = path
	}
	if driver := os.Getenv("WORDCHAIN_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if trigger := os.Getenv("WORDCHAIN_TRIGGER"); trigger != "" {
		c.Trigger = trigger
	}
	if tok := os.Getenv("WORDCHAIN_TOKENIZER"); tok != "" {
		c.Tokenizer = tok
	}
	if workers := os.Getenv("WORDCHAIN_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("%w: WORDCHAIN_WORKERS=%q: %v", ErrInvalidConfig, workers, err)
		}
		c.Ingest.Workers = n
	}
	return nil
}

// FetchTimeout returns the article fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidDrivers lists the database/sql driver names wordchain registers.
var ValidDrivers = []string{db.DriverCGO, db.DriverPure}

// ValidTokenizers lists the accepted tokenizer names.
var ValidTokenizers = []string{text.TokenizerWhitespace, text.TokenizerJapanese}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	}
	if !slices.Contains(ValidDrivers, c.Database.Driver) {
		return fmt.Errorf("%w: database driver %q (valid: %v)", ErrInvalidConfig, c.Database.Driver, ValidDrivers)
	}
	if !slices.Contains(ValidTokenizers, c.Tokenizer) {
		return fmt.Errorf("%w: tokenizer %q (valid: %v)", ErrInvalidConfig, c.Tokenizer, ValidTokenizers)
	}
	if c.Trigger == "" {
		return fmt.Errorf("%w: trigger is empty", ErrInvalidConfig)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("%w: ingest.workers must be positive, got %d", ErrInvalidConfig, c.Ingest.Workers)
	}
	if c.Ingest.ProgressEvery < 0 {
		return fmt.Errorf("%w: ingest.progress_every must not be negative", ErrInvalidConfig)
	}
	if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
		return fmt.Errorf("%w: fetch.timeout: %v", ErrInvalidConfig, err)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: fetch.max_body_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
