package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/FieldAnalyzer/internal/browser"
	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
	"github.com/PentesterFlow/FieldAnalyzer/internal/extract"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/output"
	"github.com/PentesterFlow/FieldAnalyzer/internal/ratelimit"
	"github.com/PentesterFlow/FieldAnalyzer/internal/rules"
)

// Config holds all analyzer configuration.
type Config struct {
	// Browser used for live pages
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Pattern sets and thresholds shared by every stage
	Rules rules.Rules `json:"rules" yaml:"rules"`

	Extract ExtractConfig `json:"extract" yaml:"extract"`

	Output output.Config `json:"output" yaml:"output"`

	// Analysis history
	Store StoreConfig `json:"store" yaml:"store"`

	Batch BatchConfig `json:"batch" yaml:"batch"`

	// debug, info, warn or error
	LogLevel string `json:"log_level" yaml:"log_level"`

	// pretty or json
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// ExtractConfig tunes element extraction.
type ExtractConfig struct {
	// Maximum concurrent element reads
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// StoreConfig configures the analysis history database.
type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// BatchConfig configures multi-URL runs.
type BatchConfig struct {
	// Pages analyzed at once
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Skip repeated URLs
	Dedup bool `json:"dedup" yaml:"dedup"`

	Retry     errors.RetryConfig `json:"retry" yaml:"retry"`
	RateLimit ratelimit.Config   `json:"rate_limit" yaml:"rate_limit"`
}

// DefaultStorePath returns the default history location under the user's
// home directory.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fieldanalyzer.db"
	}
	return filepath.Join(home, ".fieldanalyzer", "history.db")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: browser.DefaultConfig(),
		Rules:   rules.Default(),
		Extract: ExtractConfig{
			Concurrency: extract.DefaultConcurrency,
		},
		Output: output.DefaultConfig(),
		Store: StoreConfig{
			Enabled: false,
			Path:    DefaultStorePath(),
		},
		Batch: BatchConfig{
			Concurrency: 2,
			Dedup:       true,
			Retry:       errors.DefaultRetryConfig(),
			RateLimit:   ratelimit.DefaultConfig(),
		},
		LogLevel:  "warn",
		LogFormat: "pretty",
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML). Missing
// keys keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		config = DefaultConfig()
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file. A .json extension writes
// JSON, anything else YAML.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if c.Extract.Concurrency < 1 {
		return fmt.Errorf("extract concurrency must be at least 1")
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store path is required when the store is enabled")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1")
	}
	if c.Batch.Retry.MaxRetries < 0 {
		return fmt.Errorf("batch retries must not be negative")
	}
	if c.Batch.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the logger described by LogLevel and LogFormat.
func (c *Config) NewLogger() *logger.Logger {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		level = logger.WarnLevel
	}
	return logger.New(logger.Config{
		Level:     level,
		Pretty:    c.LogFormat != "json",
		Output:    os.Stderr,
		Component: "analyzer",
	})
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	clone.Batch.Retry.RetryableTypes = append([]errors.ErrorType(nil), c.Batch.Retry.RetryableTypes...)
	return clone
}
